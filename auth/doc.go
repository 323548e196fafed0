/*
Package auth implements mutual challenge-response authentication of a
peer-to-peer link: a client and a server each prove knowledge of a
shared key by hashing nonces they exchange, without ever transmitting
the key itself.

The protocol is a fixed four-message handshake carried over a
pluggable Transport. Package auth owns the handshake state machine,
message framing, and session lifecycle; it is deliberately agnostic to
the medium the bytes travel over. See package xport/udp for a
reference transport binding.

Usage

	logger := log.NewLogfmtLogger(os.Stderr)

	xp, err := udp.New(logger, udp.Params{
		RecvPort: 7713, SendPort: 7713,
		RecvIP: "127.0.0.1", SendIP: "127.0.0.1",
	})
	if err != nil {
		return err
	}
	defer xp.Close()

	cfg := auth.Config{
		Instance: 0,
		Role:     auth.RoleClient,
		Method:   auth.MethodChalResp,
		StatusCB: func(status auth.Status, _ interface{}) {
			logger.Log("msg", "status", "status", status)
		},
	}

	session, _ := auth.NewSession(logger, xp, cfg)
	session.Start()
	defer session.Close()

Wire format

Every frame begins with the two byte magic 0x65A2 (little-endian on
the wire), followed by a one byte message id, followed by a
message-specific fixed body. See message.go for the exact layouts.

Logging

Package auth uses structured logging via the go-kit logger:
https://godoc.org/github.com/go-kit/kit/log, with go-kit levels
separating verbose debugging logs from normal informational output.
To disable all logging, pass a nil logger to NewSession/NewHandle.

Configuration

Package auth uses the TOML format for link configuration files:
https://github.com/toml-lang/toml.

Link instances are named TOML tables:

	# This is a link instance named "l1".
	[link.l1]

	# role specifies which side of the handshake this endpoint plays.
	# Supported values are "client" and "server".
	role = "client"

	# shared_key, if set, overrides the built-in default key. It must
	# be 64 hex characters (32 bytes).
	shared_key = "bd84dc6e5c774158e8fb1db9953920e4c503699dbc5308201ef4728e905649a8"

	# recv_port / send_port specify the UDP ports the reference
	# transport listens on and sends to.
	recv_port = 7713
	send_port = 7713

	# recv_ip / send_ip specify the IPv4 addresses the reference
	# transport binds to and sends to.
	recv_ip = "127.0.0.1"
	send_ip = "127.0.0.1"

Limitations

	* The TLS-like method referenced by the wire flags is not
	  implemented; only challenge-response is.
	* The reference transport is IPv4 UDP only.
*/
package auth
