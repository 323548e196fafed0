package auth

import "testing"

const testConfig = `
[link.l1]
role = "client"
shared_key = "bd84dc6e5c774158e8fb1db9953920e4c503699dbc5308201ef4728e905649a8"
recv_port = 7713
send_port = 7714
recv_ip = "127.0.0.1"
send_ip = "127.0.0.1"

[link.l2]
role = "server"
recv_port = 7714
send_port = 7713
recv_ip = "127.0.0.1"
send_ip = "127.0.0.1"
`

func TestLoadStringParsesLinks(t *testing.T) {
	cfg, err := LoadString(testConfig)
	if err != nil {
		t.Fatalf("LoadString() returned error: %v", err)
	}

	links := cfg.GetLinks()
	if len(links) != 2 {
		t.Fatalf("GetLinks() returned %d links, want 2", len(links))
	}

	l1, ok := links["l1"]
	if !ok {
		t.Fatalf("missing link l1")
	}
	if l1.Role != RoleClient {
		t.Errorf("l1.Role = %v, want %v", l1.Role, RoleClient)
	}
	if l1.SharedKey == nil {
		t.Fatalf("l1.SharedKey should be set")
	}
	if l1.RecvPort != 7713 || l1.SendPort != 7714 {
		t.Errorf("l1 ports = (%d, %d), want (7713, 7714)", l1.RecvPort, l1.SendPort)
	}

	l2, ok := links["l2"]
	if !ok {
		t.Fatalf("missing link l2")
	}
	if l2.Role != RoleServer {
		t.Errorf("l2.Role = %v, want %v", l2.Role, RoleServer)
	}
	if l2.SharedKey != nil {
		t.Errorf("l2.SharedKey should be nil when unset in the config file")
	}
}

func TestLoadStringRejectsBadRole(t *testing.T) {
	_, err := LoadString(`
[link.bad]
role = "peer"
recv_port = 1
send_port = 2
recv_ip = "127.0.0.1"
send_ip = "127.0.0.1"
`)
	if err == nil {
		t.Fatalf("LoadString() with an invalid role should fail")
	}
}

func TestLoadStringRejectsBadSharedKeyLength(t *testing.T) {
	_, err := LoadString(`
[link.bad]
role = "client"
shared_key = "deadbeef"
recv_port = 1
send_port = 2
recv_ip = "127.0.0.1"
send_ip = "127.0.0.1"
`)
	if err == nil {
		t.Fatalf("LoadString() with a too-short shared_key should fail")
	}
}

func TestLoadStringRejectsMissingLinkTable(t *testing.T) {
	_, err := LoadString(`some_other_key = 1`)
	if err == nil {
		t.Fatalf("LoadString() with no [link.*] table should fail")
	}
}

func TestLoadStringRejectsUnrecognisedParameter(t *testing.T) {
	_, err := LoadString(`
[link.bad]
role = "client"
bogus = 1
recv_port = 1
send_port = 2
recv_ip = "127.0.0.1"
send_ip = "127.0.0.1"
`)
	if err == nil {
		t.Fatalf("LoadString() with an unrecognised parameter should fail")
	}
}
