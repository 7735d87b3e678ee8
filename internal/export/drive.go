package export

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Exporter uploads interview records to a Google Drive folder so the
// hiring team can review them outside the agent. Files are keyed by
// name: a repeat export of the same interview updates the existing
// Drive file instead of creating a duplicate.
type Exporter struct {
	service  *drive.Service
	folderID string
	fileIDs  map[string]string
	mu       sync.Mutex
}

func NewExporter(ctx context.Context, credPath, folderID string) (*Exporter, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Exporter{
		service:  svc,
		folderID: folderID,
		fileIDs:  make(map[string]string),
	}, nil
}

// ExportTranscript uploads the interview transcript as a Google Doc.
func (e *Exporter) ExportTranscript(localPath, interviewID string) error {
	name := fmt.Sprintf("openhire-interview-%s", interviewID)
	return e.upsert(localPath, name, "application/vnd.google-apps.document")
}

// ExportAudio uploads the interview audio recording as a plain file.
func (e *Exporter) ExportAudio(localPath, interviewID string) error {
	name := fmt.Sprintf("openhire-interview-%s-audio", interviewID)
	return e.upsert(localPath, name, "")
}

func (e *Exporter) upsert(localPath, name, mimeType string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	if fileID, ok := e.fileIDs[name]; ok {
		_, err = e.service.Files.Update(fileID, &drive.File{}).Media(f).Do()
		if err != nil {
			return fmt.Errorf("drive update: %w", err)
		}
		return nil
	}

	meta := &drive.File{
		Name:    name,
		Parents: []string{e.folderID},
	}
	if mimeType != "" {
		meta.MimeType = mimeType
	}

	doc, err := e.service.Files.Create(meta).Media(f).Do()
	if err != nil {
		return fmt.Errorf("drive create: %w", err)
	}

	e.fileIDs[name] = doc.Id
	return nil
}
