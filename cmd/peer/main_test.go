package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"flagbroker.dev/broker/internal/transport"
	"flagbroker.dev/broker/internal/wire"
)

func loopbackPair(t *testing.T) (a, b *transport.Conn) {
	t.Helper()
	ln, err := transport.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	accepted := make(chan *transport.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()
	client, err := transport.Dial(ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	select {
	case server := <-accepted:
		return server, client
	case <-time.After(2 * time.Second):
		t.Fatal("accept timed out")
		return nil, nil
	}
}

func TestHandleFLGRespondsToDirPrompt(t *testing.T) {
	server, client := loopbackPair(t)
	defer server.Close()
	defer client.Close()

	var out bytes.Buffer
	handleFLG(client, &out, "FLG_DIR")

	buf, err := server.ReadChunk(4096, time.Second)
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	dec := wire.NewDecoder()
	dec.Feed(buf)
	frame, err := dec.Next()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	seg, ok := frame.First(wire.TypeFLG)
	if !ok || !strings.HasPrefix(string(seg.Data), "/tmp/") {
		t.Fatalf("got %+v, ok=%v", seg, ok)
	}
}

func TestHandleFLGAcknowledgesWriteCommand(t *testing.T) {
	server, client := loopbackPair(t)
	defer server.Close()
	defer client.Close()

	var out bytes.Buffer
	handleFLG(client, &out, "echo 'abc' > /tmp/x/flag.txt")

	buf, err := server.ReadChunk(4096, time.Second)
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	dec := wire.NewDecoder()
	dec.Feed(buf)
	frame, err := dec.Next()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	seg, ok := frame.First(wire.TypeFLG)
	if !ok || string(seg.Data) != "okay" {
		t.Fatalf("got %+v, ok=%v", seg, ok)
	}
}

func TestSendLineRoutesFlgPrefix(t *testing.T) {
	server, client := loopbackPair(t)
	defer server.Close()
	defer client.Close()

	if err := sendLine(client, "FLG:mytoken"); err != nil {
		t.Fatalf("sendLine: %v", err)
	}
	buf, err := server.ReadChunk(4096, time.Second)
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	dec := wire.NewDecoder()
	dec.Feed(buf)
	frame, err := dec.Next()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	seg, ok := frame.First(wire.TypeFLG)
	if !ok || string(seg.Data) != "mytoken" {
		t.Fatalf("got %+v, ok=%v", seg, ok)
	}
}
