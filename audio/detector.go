package audio

import (
	"os"
	"os/exec"
	"runtime"
	"strconv"
)

// playerCandidate describes a CLI player that reads raw s16le stereo on stdin
type playerCandidate struct {
	typ  BackendType
	bin  string
	args func(rate string) []string
}

// Priority: pacat > pw-cat > aplay > play (sox) > ffplay
var playerCandidates = []playerCandidate{
	{BackendPulse, "pacat", func(sr string) []string {
		return []string{"--raw", "--format=s16le", "--rate=" + sr, "--channels=2", "--latency-msec=50", "--playback"}
	}},
	{BackendPipeWire, "pw-cat", func(sr string) []string {
		return []string{"--playback", "--format=s16", "--rate=" + sr, "--channels=2", "--latency=50ms", "-"}
	}},
	{BackendALSA, "aplay", func(sr string) []string {
		return []string{"-t", "raw", "-f", "S16_LE", "-r", sr, "-c", "2", "-q"}
	}},
	{BackendSoX, "play", func(sr string) []string {
		return []string{"-t", "raw", "-e", "signed", "-b", "16", "-c", "2", "-r", sr, "-", "-d", "-q"}
	}},
	{BackendFFplay, "ffplay", func(sr string) []string {
		return []string{"-nodisp", "-autoexit", "-f", "s16le", "-ac", "2", "-ar", sr,
			"-probesize", "32", "-analyzeduration", "0", "-i", "pipe:0", "-loglevel", "quiet"}
	}},
}

// DetectBackend searches for a CLI player accepting s16le stereo at rate
// Falls back to the FreeBSD OSS device when no player is installed
func DetectBackend(rate int) (*BackendConfig, error) {
	sr := strconv.Itoa(rate)
	for _, c := range playerCandidates {
		path, err := exec.LookPath(c.bin)
		if err != nil {
			continue
		}
		name := c.bin
		if c.typ == BackendSoX {
			name = "sox"
		}
		return &BackendConfig{Type: c.typ, Name: name, Path: path, Args: c.args(sr)}, nil
	}

	// Direct device write, no exec needed
	if runtime.GOOS == "freebsd" {
		if _, err := os.Stat("/dev/dsp"); err == nil {
			return &BackendConfig{Type: BackendOSS, Name: "oss", Path: "/dev/dsp"}, nil
		}
	}

	return nil, ErrNoAudioBackend
}
