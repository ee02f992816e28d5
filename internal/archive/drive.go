package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Drive reads an archive kept in Google Drive folders. Logs live in one
// subfolder per country under the text archive folder; audio folders are
// configured per country. It cannot write.
type Drive struct {
	svc          *drive.Service
	textFolder   string
	audioFolders map[string]string
}

func NewDrive(ctx context.Context, credentialsFile, textFolder string, audioFolders map[string]string, opts ...option.ClientOption) (*Drive, error) {
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile), option.WithScopes(drive.DriveReadonlyScope))
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating drive service: %w", err)
	}
	return &Drive{svc: svc, textFolder: textFolder, audioFolders: audioFolders}, nil
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `'`, `\'`)
}

// files returns name -> id for every non-trashed file in folder matching extra.
func (d *Drive) files(ctx context.Context, folder, extra string) (map[string]string, error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folder))
	if extra != "" {
		q += " and " + extra
	}
	out := map[string]string{}
	err := d.svc.Files.List().
		Q(q).
		Fields("nextPageToken, files(id, name)").
		Context(ctx).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				out[f.Name] = f.Id
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("drive query %q: %w", q, err)
	}
	return out, nil
}

func (d *Drive) folder(ctx context.Context, kind Kind, code string) (string, error) {
	if kind == KindAudio {
		id, ok := d.audioFolders[code]
		if !ok {
			return "", nil
		}
		return id, nil
	}
	subs, err := d.files(ctx, d.textFolder, fmt.Sprintf("name = '%s' and mimeType = 'application/vnd.google-apps.folder'", escapeQuery(code)))
	if err != nil {
		return "", err
	}
	return subs[code], nil
}

func (d *Drive) List(ctx context.Context, kind Kind, code string) ([]string, error) {
	if !ValidCode(code) {
		return nil, ErrInvalidCode
	}
	folder, err := d.folder(ctx, kind, code)
	if err != nil || folder == "" {
		return nil, err
	}
	files, err := d.files(ctx, folder, "")
	if err != nil {
		return nil, err
	}
	var names []string
	for name := range files {
		if n, err := ParseName(name); err == nil && n.Kind == kind && n.Code == code {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (d *Drive) Read(ctx context.Context, kind Kind, code, name string) ([]byte, error) {
	if err := checkName(kind, code, name); err != nil {
		return nil, err
	}
	folder, err := d.folder(ctx, kind, code)
	if err != nil {
		return nil, err
	}
	if folder == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	files, err := d.files(ctx, folder, fmt.Sprintf("name = '%s'", escapeQuery(name)))
	if err != nil {
		return nil, err
	}
	id, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	resp, err := d.svc.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading %s: status %d", name, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (d *Drive) Write(ctx context.Context, kind Kind, code, name string, data []byte) error {
	return ErrReadOnly
}
