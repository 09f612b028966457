package filesink

import (
	"errors"
	"testing"
	"time"

	"github.com/user/vidsurface/pkg/adapters/logger"
	"github.com/user/vidsurface/pkg/adapters/rawcodec"
	"github.com/user/vidsurface/pkg/frame"
	"github.com/user/vidsurface/pkg/mocks"
	"github.com/user/vidsurface/pkg/surface"
)

var small = frame.Format{Pixel: frame.FormatBGRA, Width: 4, Height: 2}

func TestSink_RecordsDisplayedFrames(t *testing.T) {
	fs := mocks.NewFileSystem()
	sink := New("cam0", "rec", fs, logger.NewNoop())
	surf := surface.New("cam0", sink)
	sink.Attach(surf)

	for i := 0; i < 2; i++ {
		b, err := frame.New(small, time.Duration(i)*time.Second)
		if err != nil {
			t.Fatal(err)
		}
		b.Plane(0).Data[0] = byte(i + 1)
		if err := surf.Present(b); err != nil {
			t.Fatalf("Present failed: %v", err)
		}
		sink.Tick()
		sink.Tick()
	}
	sink.Flush()

	if sink.Saved() != 2 {
		t.Fatalf("expected 2 recorded frames, got %d", sink.Saved())
	}
	data, ok := fs.GetFile("rec/cam0/frame-000001.raw")
	if !ok {
		t.Fatal("missing second frame file")
	}
	f, err := rawcodec.ParseHeader(data)
	if err != nil {
		t.Fatalf("recorded frame has no raw header: %v", err)
	}
	if f != small {
		t.Errorf("expected %s, got %s", small, f)
	}
	if data[rawcodec.HeaderSize] != 2 {
		t.Errorf("expected second frame pixels, got %d", data[rawcodec.HeaderSize])
	}
	if exists, _ := fs.Exists("rec/cam0"); !exists {
		t.Error("expected record directory to be created on configure")
	}
}

func TestSink_WriteFailure(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.WriteFileFunc = func(path string, data []byte) error {
		return errors.New("disk full")
	}
	sink := New("cam0", "rec", fs, logger.NewNoop())
	surf := surface.New("cam0", sink)
	sink.Attach(surf)

	b, _ := frame.New(small, 0)
	surf.Present(b)

	if err := sink.Tick(); err == nil {
		t.Fatal("expected write error")
	}
	if sink.Saved() != 0 {
		t.Errorf("failed write must not count, got %d", sink.Saved())
	}
}
