package h264decoder

import (
	"bytes"
	"errors"
	"math/bits"
	"os/exec"
	"testing"
	"time"

	"github.com/Eyevinn/mp4ff/avc"

	"github.com/user/vidsurface/pkg/frame"
	"github.com/user/vidsurface/pkg/ports"
)

// bitWriter builds RBSP payloads for synthetic parameter sets.
type bitWriter struct {
	buf []byte
	n   uint
}

func (w *bitWriter) bit(b uint) {
	if w.n%8 == 0 {
		w.buf = append(w.buf, 0)
	}
	if b != 0 {
		w.buf[len(w.buf)-1] |= 0x80 >> (w.n % 8)
	}
	w.n++
}

func (w *bitWriter) bits(v uint, n int) {
	for i := n - 1; i >= 0; i-- {
		w.bit((v >> uint(i)) & 1)
	}
}

func (w *bitWriter) ue(v uint) {
	x := v + 1
	l := bits.Len(x)
	w.bits(0, l-1)
	w.bits(x, l)
}

// trailing appends rbsp_stop_one_bit and alignment.
func (w *bitWriter) trailing() []byte {
	w.bit(1)
	for w.n%8 != 0 {
		w.bit(0)
	}
	return w.buf
}

// escape inserts emulation prevention bytes.
func escape(rbsp []byte) []byte {
	var out []byte
	zeros := 0
	for _, b := range rbsp {
		if zeros == 2 && b <= 3 {
			out = append(out, 3)
			zeros = 0
		}
		out = append(out, b)
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}

// baselineSPS returns a Baseline profile SPS NAL unit for w x h
// (multiples of 16).
func baselineSPS(w, h int) []byte {
	var bw bitWriter
	bw.bits(66, 8)   // profile_idc
	bw.bits(0xC0, 8) // constraint flags
	bw.bits(30, 8)   // level_idc
	bw.ue(0)         // seq_parameter_set_id
	bw.ue(0)         // log2_max_frame_num_minus4
	bw.ue(2)         // pic_order_cnt_type
	bw.ue(1)         // max_num_ref_frames
	bw.bit(0)        // gaps_in_frame_num_value_allowed_flag
	bw.ue(uint(w/16 - 1))
	bw.ue(uint(h/16 - 1))
	bw.bit(1) // frame_mbs_only_flag
	bw.bit(1) // direct_8x8_inference_flag
	bw.bit(0) // frame_cropping_flag
	bw.bit(0) // vui_parameters_present_flag
	return append([]byte{0x67}, escape(bw.trailing())...)
}

var (
	pps      = []byte{0x68, 0xCE, 0x38, 0x80}
	idrSlice = []byte{0x65, 0x88, 0x84, 0x00, 0x33}
	pSlice   = []byte{0x41, 0x9A, 0x02, 0x04}
)

func annexB(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = AppendNALU(out, n)
	}
	return out
}

// fakeBackend emits one frame per picture written, like a decoder with no
// output delay. With idrOnly set it emits frames for IDR pictures only,
// like a decoder joining a stream without a reference frame.
type fakeBackend struct {
	format  frame.Format
	pool    *frame.Pool
	ready   []*frame.Buffer
	written [][]byte
	closed  bool
	failAt  int
	idrOnly bool
}

type fakeFactory struct {
	started []*fakeBackend
	failAt  int
	idrOnly bool
}

func (f *fakeFactory) start(format frame.Format, pool *frame.Pool) (Backend, error) {
	b := &fakeBackend{format: format, pool: pool, failAt: f.failAt, idrOnly: f.idrOnly}
	f.started = append(f.started, b)
	return b, nil
}

func (b *fakeBackend) Write(data []byte, pts time.Duration, picture bool) error {
	b.written = append(b.written, data)
	if b.failAt > 0 && len(b.written) >= b.failAt {
		return ports.ErrCodecState
	}
	if !picture {
		return nil
	}
	for _, n := range avc.ExtractNalusFromByteStream(data) {
		if len(n) == 0 {
			continue
		}
		t := avc.GetNaluType(n[0])
		if IsVCL(t) {
			if b.idrOnly && t != avc.NALU_IDR {
				return nil
			}
			buf, _ := b.pool.Get(b.format, pts)
			b.ready = append(b.ready, buf)
			return nil
		}
	}
	return nil
}

func (b *fakeBackend) Frames() []*frame.Buffer {
	out := b.ready
	b.ready = nil
	return out
}

func (b *fakeBackend) Finish() ([]*frame.Buffer, error) {
	return b.Frames(), nil
}

func (b *fakeBackend) Close() error {
	b.closed = true
	for _, f := range b.Frames() {
		f.Release()
	}
	return nil
}

func openDecoder(t *testing.T, f *fakeFactory, pixel frame.PixelFormat) *Decoder {
	t.Helper()
	d := New(Options{Backend: f.start})
	cfg := ports.CodecConfig{
		Codec:  ports.CodecH264,
		Format: frame.Format{Pixel: pixel, Width: 640, Height: 368},
	}
	if err := d.Open(cfg); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func releaseAll(bufs []*frame.Buffer) {
	for _, b := range bufs {
		b.Release()
	}
}

func TestSyntheticSPSParses(t *testing.T) {
	sps, err := avc.ParseSPSNALUnit(baselineSPS(320, 240), false)
	if err != nil {
		t.Fatalf("ParseSPSNALUnit failed: %v", err)
	}
	if sps.Width != 320 || sps.Height != 240 {
		t.Errorf("expected 320x240, got %dx%d", sps.Width, sps.Height)
	}
}

func TestDecodeWaitsForParameterSets(t *testing.T) {
	f := &fakeFactory{}
	d := openDecoder(t, f, frame.FormatBGRA)

	// A picture before any parameter set is queued.
	out, err := d.Decode(annexB(idrSlice), 0)
	if err != nil || len(out) != 0 {
		t.Fatalf("expected nothing before SPS/PPS, got %d frames, err %v", len(out), err)
	}
	out, err = d.Decode(annexB(baselineSPS(320, 240)), 10*time.Millisecond)
	if err != nil || len(out) != 0 || len(f.started) != 0 {
		t.Fatalf("expected no backend with SPS only, got %d started, err %v", len(f.started), err)
	}

	out, err = d.Decode(annexB(pps, pSlice), 33*time.Millisecond)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	defer releaseAll(out)

	if len(f.started) != 1 {
		t.Fatalf("expected backend to start once, got %d", len(f.started))
	}
	want := frame.Format{Pixel: frame.FormatBGRA, Width: 320, Height: 240}
	if f.started[0].format != want {
		t.Errorf("backend started with %s, want %s", f.started[0].format, want)
	}
	if len(out) != 2 {
		t.Fatalf("expected queued and current picture, got %d frames", len(out))
	}
	if out[0].PTS != 0 || out[1].PTS != 33*time.Millisecond {
		t.Errorf("unexpected timestamps %v, %v", out[0].PTS, out[1].PTS)
	}

	// The backend is primed with the parameter sets first.
	first := f.started[0].written[0]
	if !bytes.Equal(first, annexB(baselineSPS(320, 240), pps)) {
		t.Errorf("backend not primed with SPS/PPS: % x", first)
	}
}

func TestDecodeMalformed(t *testing.T) {
	f := &fakeFactory{}
	d := openDecoder(t, f, frame.FormatBGRA)

	badSPS := []byte{0x67, 0x42}
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"no start code", append([]byte{0xAA}, annexB(idrSlice)...)},
		{"forbidden bit", annexB([]byte{0xE5, 0x88})},
		{"truncated sps", annexB(badSPS, pps)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.Decode(tt.payload, 0); !errors.Is(err, ports.ErrMalformedPayload) {
				t.Errorf("expected ErrMalformedPayload, got %v", err)
			}
		})
	}
	if _, ok := d.Format(); ok {
		t.Error("malformed SPS must not be captured")
	}

	out, err := d.Decode(annexB(baselineSPS(640, 368), pps, idrSlice), 0)
	if err != nil || len(out) != 1 {
		t.Fatalf("expected recovery, got %d frames, err %v", len(out), err)
	}
	releaseAll(out)
}

func TestDecodeRestartsOnNewDimensions(t *testing.T) {
	f := &fakeFactory{}
	d := openDecoder(t, f, frame.FormatI420)

	out, _ := d.Decode(annexB(baselineSPS(320, 240), pps, idrSlice), 0)
	releaseAll(out)
	out, _ = d.Decode(annexB(pSlice), 1)
	releaseAll(out)

	// Same dimensions again: no restart.
	out, _ = d.Decode(annexB(baselineSPS(320, 240), pps, idrSlice), 2)
	releaseAll(out)
	if len(f.started) != 1 {
		t.Fatalf("expected one backend, got %d", len(f.started))
	}

	out, err := d.Decode(annexB(baselineSPS(640, 480), pps, idrSlice), 3)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	defer releaseAll(out)

	if len(f.started) != 2 {
		t.Fatalf("expected backend restart, got %d backends", len(f.started))
	}
	if len(out) != 1 || out[0].Format.Width != 640 || out[0].Format.Height != 480 {
		t.Fatalf("expected one 640x480 frame, got %d", len(out))
	}
	if got, _ := d.Format(); got != (frame.Format{Pixel: frame.FormatI420, Width: 640, Height: 480}) {
		t.Errorf("unexpected format %s", got)
	}
}

func TestDecodeBackendFailure(t *testing.T) {
	f := &fakeFactory{failAt: 3}
	d := openDecoder(t, f, frame.FormatBGRA)

	out, err := d.Decode(annexB(baselineSPS(320, 240), pps, idrSlice), 0)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	releaseAll(out)

	_, err = d.Decode(annexB(pSlice), 1)
	if !errors.Is(err, ports.ErrCodecState) {
		t.Fatalf("expected ErrCodecState, got %v", err)
	}
	if !f.started[0].closed {
		t.Error("failed backend should be closed")
	}

	// Close and reopen as a decode session does; parameter sets survive.
	d.Close()
	f.failAt = 0
	if err := d.Open(ports.CodecConfig{Codec: ports.CodecH264, Format: frame.Format{Pixel: frame.FormatBGRA, Width: 320, Height: 240}}); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	out, err = d.Decode(annexB(pSlice), 2)
	if err != nil || len(out) != 1 {
		t.Fatalf("expected a frame after reopen, got %d, err %v", len(out), err)
	}
	releaseAll(out)
}

func TestDecodeSkippedPictureKeepsTimestamps(t *testing.T) {
	f := &fakeFactory{idrOnly: true}
	d := openDecoder(t, f, frame.FormatBGRA)

	var got []time.Duration
	collect := func(out []*frame.Buffer) {
		for _, b := range out {
			got = append(got, b.PTS)
			b.Release()
		}
	}

	out, err := d.Decode(annexB(baselineSPS(320, 240), pps, idrSlice), 0)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	collect(out)

	// The P picture produces no frame; it is reported once the next frame
	// shows it was skipped.
	out, err = d.Decode(annexB(pSlice), 1)
	if err != nil {
		t.Fatalf("a picture still pending must not fail yet, got %v", err)
	}
	collect(out)

	out, err = d.Decode(annexB(idrSlice), 2)
	var skipped *SkippedError
	if !errors.As(err, &skipped) || !errors.Is(err, ports.ErrMalformedPayload) {
		t.Fatalf("expected SkippedError wrapping ErrMalformedPayload, got %v", err)
	}
	if len(skipped.PTS) != 1 || skipped.PTS[0] != 1 {
		t.Errorf("expected picture at 1 reported, got %v", skipped.PTS)
	}
	collect(out)

	out, err = d.Decode(annexB(idrSlice), 3)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	collect(out)

	want := []time.Duration{0, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected timestamps %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d: expected pts %v, got %v", i, want[i], got[i])
		}
	}
}

func TestFlushReportsPicturesWithoutFrames(t *testing.T) {
	f := &fakeFactory{idrOnly: true}
	d := openDecoder(t, f, frame.FormatBGRA)

	out, _ := d.Decode(annexB(baselineSPS(320, 240), pps, idrSlice), 0)
	releaseAll(out)
	out, _ = d.Decode(annexB(pSlice), 1)
	releaseAll(out)

	out, err := d.Flush()
	releaseAll(out)
	var skipped *SkippedError
	if !errors.As(err, &skipped) || len(skipped.PTS) != 1 || skipped.PTS[0] != 1 {
		t.Errorf("expected the trailing picture reported as skipped, got %v", err)
	}
}

func TestFlushFinishesBackend(t *testing.T) {
	f := &fakeFactory{}
	d := openDecoder(t, f, frame.FormatBGRA)

	out, _ := d.Decode(annexB(baselineSPS(320, 240), pps, idrSlice), 0)
	releaseAll(out)

	out, err := d.Flush()
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected nothing left, got %d", len(out))
	}

	// The next picture starts a fresh backend.
	out, _ = d.Decode(annexB(pSlice), 1)
	releaseAll(out)
	if len(f.started) != 2 {
		t.Errorf("expected a new backend after flush, got %d", len(f.started))
	}
}

func TestOpenRejects(t *testing.T) {
	d := New(Options{Backend: (&fakeFactory{}).start})
	err := d.Open(ports.CodecConfig{Codec: ports.CodecMJPEG, Format: frame.Format{Pixel: frame.FormatBGRA, Width: 2, Height: 2}})
	if !errors.Is(err, ports.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := d.Decode(annexB(idrSlice), 0); !errors.Is(err, ports.ErrCodecState) {
		t.Errorf("expected ErrCodecState before Open, got %v", err)
	}
}

func TestSplitAccessUnits(t *testing.T) {
	aud := []byte{0x09, 0xF0}
	pSlice2 := []byte{0x41, 0x9B, 0x11}
	secondSlice := []byte{0x41, 0x1A, 0x22} // first_mb_in_slice != 0

	stream := annexB(aud, baselineSPS(320, 240), pps, idrSlice, pSlice, secondSlice, aud, pSlice2)
	aus := SplitAccessUnits(stream)
	if len(aus) != 3 {
		t.Fatalf("expected 3 access units, got %d", len(aus))
	}
	if !bytes.Equal(aus[0], annexB(aud, baselineSPS(320, 240), pps, idrSlice)) {
		t.Error("first access unit should carry the parameter sets")
	}
	if !bytes.Equal(aus[1], annexB(pSlice, secondSlice)) {
		t.Error("slices of one picture must stay together")
	}
	if !bytes.Equal(aus[2], annexB(aud, pSlice2)) {
		t.Error("delimiter should open a new access unit")
	}
}

func TestFFmpegDecodesStream(t *testing.T) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not found")
	}
	SetFFmpegPath(path)
	defer SetFFmpegPath("")
	if !IsAvailable() {
		t.Fatal("expected ffmpeg to be available")
	}

	f := frame.Format{Pixel: frame.FormatBGRA, Width: 64, Height: 48}
	b, err := FFmpegBackend(path)(f, frame.NewPool())
	if err != nil {
		t.Fatalf("start ffmpeg: %v", err)
	}
	// No valid pictures: ffmpeg exits cleanly without output.
	frames, _ := b.Finish()
	releaseAll(frames)
	if len(frames) != 0 {
		t.Errorf("expected no frames from an empty stream, got %d", len(frames))
	}
}
