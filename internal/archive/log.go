package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/deusflow/pulse/internal/trends"
)

// TimestampLayout is the YYYYMMDD_HHMMSS form used in Logs and file names.
const TimestampLayout = "20060102_150405"

var (
	ErrNotFound     = errors.New("archive: not found")
	ErrReadOnly     = errors.New("archive: store is read-only")
	ErrInvalidName  = errors.New("archive: invalid file name")
	ErrInvalidCode  = errors.New("archive: invalid country code")
	ErrInvalidStamp = errors.New("archive: invalid timestamp")
)

// Kind selects one of the two archive locations.
type Kind int

const (
	KindLog Kind = iota
	KindAudio
)

func (k Kind) String() string {
	if k == KindAudio {
		return "audio"
	}
	return "log"
}

func (k Kind) suffix() string {
	if k == KindAudio {
		return "_analysis.mp3"
	}
	return "_log.json"
}

// Log is one fetch cycle. It is never modified once written.
type Log struct {
	Timestamp string         `json:"timestamp"`
	Country   string         `json:"country"`
	Headlines []string       `json:"headlines"`
	Trends    []trends.Trend `json:"trends"`
	Analysis  string         `json:"analysis"`
}

// Time parses the Log timestamp.
func (l *Log) Time() (time.Time, error) {
	t, err := time.Parse(TimestampLayout, l.Timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidStamp, l.Timestamp)
	}
	return t, nil
}

// EncodeLog renders l as two-space indented JSON with non-ASCII text kept verbatim.
func EncodeLog(l *Log) ([]byte, error) {
	out := *l
	if out.Headlines == nil {
		out.Headlines = []string{}
	}
	out.Trends = make([]trends.Trend, len(l.Trends))
	for i, t := range l.Trends {
		if t.Related == nil {
			t.Related = []string{}
		}
		out.Trends[i] = t
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&out); err != nil {
		return nil, fmt.Errorf("encoding log: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodeLog(data []byte) (*Log, error) {
	var l Log
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decoding log: %w", err)
	}
	return &l, nil
}

var (
	codePattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,5}$`)
	namePattern = regexp.MustCompile(`^([A-Z][A-Z0-9]{1,5})_(\d{8})(?:_(\d{6}))?(_log\.json|_analysis\.mp3)$`)
)

// ValidCode reports whether code can be used in a file name or path.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// FileName builds {CODE}_{YYYYMMDD_HHMMSS}_log.json or _analysis.mp3.
func FileName(kind Kind, code, timestamp string) (string, error) {
	if !ValidCode(code) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	if _, err := time.Parse(TimestampLayout, timestamp); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidStamp, timestamp)
	}
	return code + "_" + timestamp + kind.suffix(), nil
}

// Name is a parsed archive file name.
type Name struct {
	File string
	Code string
	Date string // YYYYMMDD
	Time string // HHMMSS, empty for the legacy date-only form
	Kind Kind
}

// sortKey orders names of the same date; date-only names sort first.
func (n Name) sortKey() string {
	return n.Date + n.Time
}

// ParseName accepts {CODE}_{YYYYMMDD}[_{HHMMSS}]_{log.json|analysis.mp3}.
func ParseName(file string) (Name, error) {
	m := namePattern.FindStringSubmatch(file)
	if m == nil {
		return Name{}, fmt.Errorf("%w: %q", ErrInvalidName, file)
	}
	if _, err := time.Parse("20060102", m[2]); err != nil {
		return Name{}, fmt.Errorf("%w: %q", ErrInvalidName, file)
	}
	if m[3] != "" {
		if _, err := time.Parse("150405", m[3]); err != nil {
			return Name{}, fmt.Errorf("%w: %q", ErrInvalidName, file)
		}
	}
	n := Name{File: file, Code: m[1], Date: m[2], Time: m[3], Kind: KindLog}
	if m[4] == "_analysis.mp3" {
		n.Kind = KindAudio
	}
	return n, nil
}
