// Command authserver is a minimal server exercising the authenticator
// package end to end over real TCP connections. It can be used together
// with cmd/authclient.
//
// Grounded on the teacher's cmd/server/main.go (flag parsing, one
// net.Listen/Accept loop, one goroutine per connection).
package main

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/aspia-go/peerauth/authenticator"
	"github.com/aspia-go/peerauth/authlog"
	"github.com/aspia-go/peerauth/bignum"
	"github.com/aspia-go/peerauth/executor"
	"github.com/aspia-go/peerauth/sessiontype"
	"github.com/aspia-go/peerauth/srp"
	"github.com/aspia-go/peerauth/transport"
	"github.com/aspia-go/peerauth/userdb"
)

// deriveX turns (salt, username, password) into the SRP private exponent
// x. This module's embedder owns this choice (srp.ComputeVerifier only
// does the group exponentiation); a plain salted hash is enough for a demo
// account and keeps this binary free of a password-hashing dependency
// nothing else in this module needs.
func deriveX(salt []byte, username, password string) bignum.Int {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(username))
	h.Write([]byte(password))
	return bignum.FromBytes(h.Sum(nil))
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "%s is a minimal server for the peerauth SRP handshake. It can be used together with cmd/authclient.\nUsage:\n", os.Args[0])
		flag.PrintDefaults()
	}

	addr := flag.String("l", ":9999", "address to listen on")
	userFile := flag.String("userdb", "", "path to a JSON user file (created if absent); empty keeps the user list in memory only")
	demoUser := flag.String("demo-user", "alice", "username to seed with -demo-pass, for trying the client out")
	demoPass := flag.String("demo-pass", "correct horse battery staple", "password for -demo-user")
	anon := flag.Bool("anon", false, "allow anonymous access as AuthorizedPeer")
	flag.Parse()

	logger := authlog.New("authserver")

	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		logger.Errorf("generate server key: %v", err)
		os.Exit(1)
	}

	store, err := openStore(*userFile, *demoUser, *demoPass, logger)
	if err != nil {
		logger.Errorf("open user store: %v", err)
		os.Exit(1)
	}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		logger.Errorf("listen: %v", err)
		os.Exit(1)
	}
	logger.Infof("listening on %s", *addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			logger.Errorf("accept: %v", err)
			continue
		}
		go handleConn(conn, priv.Bytes(), store, *anon, logger)
	}
}

func openStore(path, demoUser, demoPass string, logger authlog.Logger) (userdb.Store, error) {
	if path == "" {
		store := userdb.NewMapStore()
		seedDemoUser(store, demoUser, demoPass)
		return store, nil
	}
	fs := userdb.NewFileStore(path)
	if err := fs.Load(); err != nil {
		return nil, err
	}
	if _, found, _ := fs.Find(context.Background(), userdb.NormalizeUsername(demoUser)); !found {
		seedDemoUser(fs.MapStore, demoUser, demoPass)
		if err := fs.Save(); err != nil {
			logger.Warnf("save seeded user file: %v", err)
		}
	}
	return fs, nil
}

func seedDemoUser(store *userdb.MapStore, username, password string) {
	g := srp.Default()
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		panic(err)
	}
	x := deriveX(salt, userdb.NormalizeUsername(username), password)
	v := srp.ComputeVerifier(g, x)
	store.Put(username, userdb.Record{
		Salt:               salt,
		Verifier:           v.ToBytes(g.ByteLen),
		GroupID:            srp.DefaultGroupID,
		AllowedSessionMask: sessiontype.Of(sessiontype.AuthorizedPeer, sessiontype.Manager),
		Enabled:            true,
	})
}

func handleConn(conn net.Conn, serverKey []byte, store userdb.Store, allowAnon bool, logger authlog.Logger) {
	defer conn.Close()
	logger.Infof("connection from %s", conn.RemoteAddr())

	a := authenticator.New(logger)
	if err := a.SetUserList(store); err != nil {
		logger.Errorf("SetUserList: %v", err)
		return
	}
	if err := a.SetPrivateKey(serverKey); err != nil {
		logger.Errorf("SetPrivateKey: %v", err)
		return
	}
	if allowAnon {
		if err := a.SetAnonymousAccess(authenticator.AnonymousAccessEnable, sessiontype.Of(sessiontype.AuthorizedPeer)); err != nil {
			logger.Errorf("SetAnonymousAccess: %v", err)
			return
		}
	}

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		logger.Errorf("Start: %v", err)
		return
	}

	ch := transport.NewNetChannel(conn)
	exec := executor.NewSerialExecutor()
	defer exec.Close()

	runHandshake(ctx, a, ch, exec, logger)
}

// runHandshake pumps one handshake to completion. Every call into a runs
// on exec, the single-worker queue the authenticator is affine to
// (spec.md §5); here that queue happens to share a goroutine with the
// connection loop, but the affinity discipline is the same one a
// multiplexed server would need.
func runHandshake(ctx context.Context, a *authenticator.Authenticator, ch transport.Channel, exec executor.Executor, logger authlog.Logger) {
	writeAll := func(reply []byte) bool {
		for reply != nil {
			if err := ch.WriteMessage(ctx, reply); err != nil {
				logger.Warnf("write: %v", err)
				return false
			}
			var nerr error
			reply, nerr = runOn(exec, func() ([]byte, error) { return a.OnWriteDone(ctx) })
			if nerr != nil {
				logger.Warnf("OnWriteDone: %v", nerr)
				return false
			}
		}
		return true
	}

	for {
		data, err := ch.ReadMessage(ctx)
		if err != nil {
			logger.Warnf("read: %v", err)
			return
		}
		reply, onErr := runOn(exec, func() ([]byte, error) { return a.OnBytes(ctx, data) })
		if !writeAll(reply) {
			return
		}
		if onErr != nil {
			logger.Warnf("handshake failed: %v", onErr)
			if reply == nil {
				return
			}
		}
		finished := false
		runOn(exec, func() ([]byte, error) {
			if state := a.State(); state != authenticator.Done && state != authenticator.Failed {
				return nil, nil
			}
			finished = true
			res, err := a.TakeResult()
			if err != nil {
				logger.Errorf("TakeResult: %v", err)
				return nil, nil
			}
			logger.Infof("handshake finished status=%d sessionType=%d", res.Status, res.SessionType)
			return nil, nil
		})
		if finished {
			return
		}
	}
}

func runOn(exec executor.Executor, fn func() ([]byte, error)) ([]byte, error) {
	type result struct {
		reply []byte
		err   error
	}
	done := make(chan result, 1)
	exec.Go(func() {
		reply, err := fn()
		done <- result{reply, err}
	})
	r := <-done
	return r.reply, r.err
}
