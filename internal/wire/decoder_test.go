package wire

import "testing"

func TestDecoderByteAtATime(t *testing.T) {
	f1, _ := EmitOne(TypeCMD, []byte("ls -la"))
	f2, _ := EmitOne(TypeOUT, []byte("total 0"))
	stream := append(append([]byte{}, f1...), f2...)

	d := NewDecoder()
	var got []*Frame
	for _, b := range stream {
		d.Feed([]byte{b})
		for {
			frame, err := d.Next()
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if frame == nil {
				break
			}
			got = append(got, frame)
		}
	}
	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2", len(got))
	}
	if s, _ := got[0].First(TypeCMD); string(s.Data) != "ls -la" {
		t.Fatalf("frame 0 = %q", s.Data)
	}
	if s, _ := got[1].First(TypeOUT); string(s.Data) != "total 0" {
		t.Fatalf("frame 1 = %q", s.Data)
	}
}

func TestDecoderWholeChunk(t *testing.T) {
	f1, _ := EmitOne(TypeCMD, []byte("pwd"))
	f2, _ := EmitOne(TypeCMD, []byte("whoami"))
	stream := append(append([]byte{}, f1...), f2...)

	d := NewDecoder()
	d.Feed(stream)

	var frames []*Frame
	for {
		frame, err := d.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if frame == nil {
			break
		}
		frames = append(frames, frame)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if d.Buffered() != 0 {
		t.Fatalf("expected empty buffer, got %d bytes", d.Buffered())
	}
}

func TestDecoderResyncAfterGarbage(t *testing.T) {
	good, _ := EmitOne(TypeFLG, []byte("FLG_DIR"))
	stream := append([]byte("garbage-not-a-frame"), good...)

	d := NewDecoder()
	d.Feed(stream)

	_, err := d.Next()
	if err == nil {
		t.Fatalf("expected decode error on garbage prefix")
	}
	d.Resync()

	frame, err := d.Next()
	if err != nil {
		t.Fatalf("unexpected error after resync: %v", err)
	}
	if frame == nil {
		t.Fatalf("expected a frame after resync")
	}
	if s, _ := frame.First(TypeFLG); string(s.Data) != "FLG_DIR" {
		t.Fatalf("got %q, want FLG_DIR", s.Data)
	}
}

func TestDecoderNeedsMoreData(t *testing.T) {
	full, _ := EmitOne(TypeCMD, []byte("ls -la /tmp/somewhere"))
	d := NewDecoder()
	d.Feed(full[:len(full)-5])

	frame, err := d.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame != nil {
		t.Fatalf("expected nil frame while waiting for more data")
	}

	d.Feed(full[len(full)-5:])
	frame, err = d.Next()
	if err != nil {
		t.Fatalf("unexpected error after completing frame: %v", err)
	}
	if frame == nil {
		t.Fatalf("expected a completed frame")
	}
}
