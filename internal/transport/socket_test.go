package transport

import (
	"testing"
	"time"

	"flagbroker.dev/broker/internal/wire"
)

func dialPair(t *testing.T) (ln *Listener, serverSide, clientSide *Conn) {
	t.Helper()
	ln, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	acceptedCh := make(chan *Conn, 1)
	errCh := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			errCh <- err
			return
		}
		acceptedCh <- c
	}()

	client, err := Dial(ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	select {
	case c := <-acceptedCh:
		serverSide = c
	case err := <-errCh:
		t.Fatalf("Accept: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept")
	}
	return ln, serverSide, client
}

func TestSendReadChunkRoundTrip(t *testing.T) {
	_, server, client := dialPair(t)
	defer server.Close()
	defer client.Close()

	seg := wire.Segment{Type: wire.TypeFLG, Data: []byte("FLG_DIR")}
	if err := server.Send(seg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	buf, err := client.ReadChunk(4096, time.Second)
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}

	dec := wire.NewDecoder()
	dec.Feed(buf)
	frame, err := dec.Next()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := frame.First(wire.TypeFLG)
	if !ok || string(got.Data) != "FLG_DIR" {
		t.Fatalf("got %+v, ok=%v", got, ok)
	}
}

func TestReadChunkTimesOutWithoutData(t *testing.T) {
	_, server, client := dialPair(t)
	defer server.Close()
	defer client.Close()

	_, err := client.ReadChunk(4096, 50*time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestReadChunkWithCipherRoundTrips(t *testing.T) {
	_, server, client := dialPair(t)
	defer server.Close()
	defer client.Close()

	ciph, err := NewAESCBCCipher([]byte("shared-secret-material"))
	if err != nil {
		t.Fatalf("NewAESCBCCipher: %v", err)
	}
	server.SetCipher(ciph)
	client.SetCipher(ciph)

	seg := wire.Segment{Type: wire.TypeCMD, Data: []byte("ls -la")}
	if err := server.Send(seg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	buf, err := client.ReadChunk(4096, time.Second)
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	dec := wire.NewDecoder()
	dec.Feed(buf)
	frame, err := dec.Next()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := frame.First(wire.TypeCMD)
	if !ok || string(got.Data) != "ls -la" {
		t.Fatalf("got %+v, ok=%v", got, ok)
	}
}
