package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"

	"github.com/lixenwraith/geosym/parameter"
)

// PipeOutput pumps rendered PCM into an external player or any writer
// A ticker pulls one buffer per tick, so a writer that never blocks
// (io.Discard) still advances the music in real time
type PipeOutput struct {
	mu       sync.Mutex // Guards streamer against Do
	rate     int
	detect   func(rate int) (*BackendConfig, error)
	writer   io.Writer
	streamer beep.Streamer

	backend *BackendConfig
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	ossFile *os.File

	lifeMu  sync.Mutex
	active  bool
	stop    chan struct{}
	wg      sync.WaitGroup
	errChan chan error
	failed  atomic.Bool   // Pump exited on a write error
	written atomic.Uint64 // Frames written
}

// NewPipeOutput creates an output that detects a CLI player on Activate
func NewPipeOutput(rate int) *PipeOutput {
	return &PipeOutput{
		rate:    rate,
		detect:  DetectBackend,
		errChan: make(chan error, 1),
	}
}

// NewSilentOutput pumps into io.Discard; visuals stay in sync without sound
func NewSilentOutput(rate int) *PipeOutput {
	return NewWriterOutput(rate, io.Discard)
}

// NewWriterOutput pumps s16le stereo PCM into w
func NewWriterOutput(rate int, w io.Writer) *PipeOutput {
	return &PipeOutput{
		rate:    rate,
		writer:  w,
		backend: &BackendConfig{Type: BackendDiscard, Name: "silent"},
		errChan: make(chan error, 1),
	}
}

func (o *PipeOutput) Name() string {
	o.lifeMu.Lock()
	defer o.lifeMu.Unlock()
	if o.backend != nil {
		return o.backend.Name
	}
	return "pipe"
}

// Activate starts the player process (if any) and the pump goroutine
// A pump that died on a write error is torn down and started again
func (o *PipeOutput) Activate() error {
	o.lifeMu.Lock()
	defer o.lifeMu.Unlock()

	if o.active {
		if !o.failed.Load() {
			return nil
		}
		o.closeLocked()
		select {
		case <-o.errChan:
		default:
		}
	}

	if o.writer == nil {
		if err := o.openBackend(); err != nil {
			return fmt.Errorf("%w: %v", ErrActivationFailed, err)
		}
	}

	o.stop = make(chan struct{})
	o.active = true
	o.failed.Store(false)
	o.wg.Add(1)
	go o.loop(o.writer, o.stop)
	log.Printf("audio: pipe output active (%s)", o.backend.Name)
	return nil
}

func (o *PipeOutput) openBackend() error {
	backend, err := o.detect(o.rate)
	if err != nil {
		return err
	}

	if backend.Type == BackendOSS {
		f, err := os.OpenFile(backend.Path, os.O_WRONLY, 0)
		if err != nil {
			return err
		}
		o.ossFile = f
		o.writer = f
		o.backend = backend
		return nil
	}

	cmd := exec.Command(backend.Path, backend.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return err
	}
	o.cmd = cmd
	o.stdin = stdin
	o.writer = stdin
	o.backend = backend
	return nil
}

func (o *PipeOutput) Play(s beep.Streamer) {
	o.Do(func() {
		o.streamer = s
	})
}

func (o *PipeOutput) Do(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn()
}

// Errors returns the channel reporting a broken pipe
func (o *PipeOutput) Errors() <-chan error {
	return o.errChan
}

// Failed reports whether the pump stopped on a write error
func (o *PipeOutput) Failed() bool {
	return o.failed.Load()
}

// FramesWritten returns the number of frames pumped so far
func (o *PipeOutput) FramesWritten() uint64 {
	return o.written.Load()
}

// loop is the pump goroutine
func (o *PipeOutput) loop(w io.Writer, stop <-chan struct{}) {
	defer o.wg.Done()

	ticker := time.NewTicker(parameter.AudioBufferDuration)
	defer ticker.Stop()

	frames := parameter.AudioBufferSamples(o.rate)
	buf := make([][2]float64, frames)
	outBytes := make([]byte, frames*parameter.AudioBytesPerFrame)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			clear(buf)
			o.mu.Lock()
			if o.streamer != nil {
				o.streamer.Stream(buf)
			}
			o.mu.Unlock()

			framesToBytes(buf, outBytes)
			if _, err := w.Write(outBytes); err != nil {
				o.failed.Store(true)
				select {
				case o.errChan <- fmt.Errorf("%w: %v", ErrPipeClosed, err):
				default:
				}
				return
			}
			o.written.Add(uint64(frames))
		}
	}
}

// Close stops the pump and the player process
func (o *PipeOutput) Close() error {
	o.lifeMu.Lock()
	defer o.lifeMu.Unlock()

	if !o.active {
		return nil
	}
	o.closeLocked()
	return nil
}

func (o *PipeOutput) closeLocked() {
	close(o.stop)
	o.wg.Wait()
	o.active = false

	if o.stdin != nil {
		o.stdin.Close()
		o.stdin = nil
	}
	if o.cmd != nil {
		o.cmd.Wait()
		o.cmd = nil
		o.writer = nil
	}
	if o.ossFile != nil {
		o.ossFile.Close()
		o.ossFile = nil
		o.writer = nil
	}
}

// framesToBytes converts stereo frames to s16le with soft limiting
func framesToBytes(in [][2]float64, out []byte) {
	for i, f := range in {
		l := int16(softLimit(f[0]) * 32767)
		r := int16(softLimit(f[1]) * 32767)
		idx := i * parameter.AudioBytesPerFrame
		binary.LittleEndian.PutUint16(out[idx:], uint16(l))
		binary.LittleEndian.PutUint16(out[idx+2:], uint16(r))
	}
}

var (
	_ Output = (*PipeOutput)(nil)
	_ Faulty = (*PipeOutput)(nil)
)
