package archive

import (
	"context"
)

// Store is where Logs and audio files live. Names are bare file names
// such as IL_20250101_093000_log.json; the store decides the layout.
type Store interface {
	List(ctx context.Context, kind Kind, code string) ([]string, error)
	Read(ctx context.Context, kind Kind, code, name string) ([]byte, error)
	Write(ctx context.Context, kind Kind, code, name string, data []byte) error
}

// checkName rejects anything that is not a well-formed archive name for code.
func checkName(kind Kind, code, name string) error {
	if !ValidCode(code) {
		return ErrInvalidCode
	}
	n, err := ParseName(name)
	if err != nil {
		return err
	}
	if n.Code != code || n.Kind != kind {
		return ErrInvalidName
	}
	return nil
}

// WriteLog stores l under its country code and timestamp and returns the file name.
func WriteLog(ctx context.Context, s Store, code string, l *Log) (string, error) {
	name, err := FileName(KindLog, code, l.Timestamp)
	if err != nil {
		return "", err
	}
	data, err := EncodeLog(l)
	if err != nil {
		return "", err
	}
	if err := s.Write(ctx, KindLog, code, name, data); err != nil {
		return "", err
	}
	return name, nil
}

// WriteAudio stores an MP3 under the same timestamp as its Log.
func WriteAudio(ctx context.Context, s Store, code, timestamp string, mp3 []byte) (string, error) {
	name, err := FileName(KindAudio, code, timestamp)
	if err != nil {
		return "", err
	}
	if err := s.Write(ctx, KindAudio, code, name, mp3); err != nil {
		return "", err
	}
	return name, nil
}

func ReadLog(ctx context.Context, s Store, code, name string) (*Log, error) {
	data, err := s.Read(ctx, KindLog, code, name)
	if err != nil {
		return nil, err
	}
	return DecodeLog(data)
}

// Mirrored writes to a primary store and copies every successful write to
// a mirror. Mirror failures are reported through onMirrorErr, not returned.
type Mirrored struct {
	Store
	mirror      Store
	onMirrorErr func(kind Kind, code, name string, err error)
}

func NewMirrored(primary, mirror Store, onMirrorErr func(kind Kind, code, name string, err error)) *Mirrored {
	return &Mirrored{Store: primary, mirror: mirror, onMirrorErr: onMirrorErr}
}

func (m *Mirrored) Write(ctx context.Context, kind Kind, code, name string, data []byte) error {
	if err := m.Store.Write(ctx, kind, code, name, data); err != nil {
		return err
	}
	if err := m.mirror.Write(ctx, kind, code, name, data); err != nil && m.onMirrorErr != nil {
		m.onMirrorErr(kind, code, name, err)
	}
	return nil
}

// SyncResult counts what Sync copied.
type SyncResult struct {
	Copied  int
	Skipped int
}

// Sync copies files of both kinds for code that dst does not have yet.
func Sync(ctx context.Context, src, dst Store, code string) (SyncResult, error) {
	var res SyncResult
	for _, kind := range []Kind{KindLog, KindAudio} {
		have, err := dst.List(ctx, kind, code)
		if err != nil {
			return res, err
		}
		existing := make(map[string]struct{}, len(have))
		for _, n := range have {
			existing[n] = struct{}{}
		}
		names, err := src.List(ctx, kind, code)
		if err != nil {
			return res, err
		}
		for _, name := range names {
			if _, ok := existing[name]; ok {
				res.Skipped++
				continue
			}
			data, err := src.Read(ctx, kind, code, name)
			if err != nil {
				return res, err
			}
			if err := dst.Write(ctx, kind, code, name, data); err != nil {
				return res, err
			}
			res.Copied++
		}
	}
	return res, nil
}
