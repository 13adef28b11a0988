package pattern

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lixenwraith/geosym/parameter"
)

var letterSemitones = map[byte]int{
	'C': parameter.NoteC,
	'D': parameter.NoteD,
	'E': parameter.NoteE,
	'F': parameter.NoteF,
	'G': parameter.NoteG,
	'A': parameter.NoteA,
	'B': parameter.NoteB,
}

// ParsePitch converts scientific pitch notation to a MIDI note
// Accepts sharps (#) and flats (b), octave may be negative: "C1", "A#0", "Eb3", "C-1"
func ParsePitch(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: pitch %q", ErrBadStep, s)
	}

	semi, ok := letterSemitones[strings.ToUpper(s[:1])[0]]
	if !ok {
		return 0, fmt.Errorf("%w: pitch %q", ErrBadStep, s)
	}

	i := 1
	for ; i < len(s); i++ {
		switch s[i] {
		case '#':
			semi++
			continue
		case 'b':
			semi--
			continue
		}
		break
	}

	octave, err := strconv.Atoi(s[i:])
	if err != nil {
		return 0, fmt.Errorf("%w: pitch %q", ErrBadStep, s)
	}

	note := parameter.MIDINote(semi, octave)
	if note < 0 || note > 127 {
		return 0, fmt.Errorf("%w: pitch %q out of MIDI range", ErrBadStep, s)
	}
	return note, nil
}

// PitchName renders a MIDI note with sharps, C4 = 60
func PitchName(note int) string {
	names := [...]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	octave := note/12 - 1
	return names[((note%12)+12)%12] + strconv.Itoa(octave)
}

// ParseDuration converts note-value notation into 16th-grid steps
// "16n" = 1, "8n" = 2, "4n" = 4, "2n" = 8, "1n"/"1m" = 16, "32n" = 0.5,
// a trailing dot adds half, "+" sums terms: "4n+8n" = 6
func ParseDuration(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty duration", ErrBadStep)
	}

	var total float64
	for _, term := range strings.Split(s, "+") {
		term = strings.TrimSpace(term)
		dotted := strings.HasSuffix(term, ".")
		term = strings.TrimSuffix(term, ".")

		var steps float64
		switch {
		case strings.HasSuffix(term, "m"):
			bars, err := strconv.Atoi(strings.TrimSuffix(term, "m"))
			if err != nil || bars <= 0 {
				return 0, fmt.Errorf("%w: duration %q", ErrBadStep, s)
			}
			steps = float64(bars * parameter.StepsPerBar)
		case strings.HasSuffix(term, "n"):
			div, err := strconv.Atoi(strings.TrimSuffix(term, "n"))
			if err != nil || div <= 0 {
				return 0, fmt.Errorf("%w: duration %q", ErrBadStep, s)
			}
			steps = float64(parameter.StepsPerBar) / float64(div)
		default:
			return 0, fmt.Errorf("%w: duration %q", ErrBadStep, s)
		}

		if dotted {
			steps *= 1.5
		}
		total += steps
	}
	return total, nil
}
