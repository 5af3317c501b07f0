package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"leadmatch/internal/config"
)

// FileMeta describes one document in a supplier folder
type FileMeta struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mime_type"`
	ModifiedTime time.Time `json:"modified_time"`
	Supplier     string    `json:"supplier"`
}

// Format returns the parser format for the file, or "" if unsupported
func (f FileMeta) Format() string {
	return FormatOf(f.Name, f.MimeType)
}

// Source lists and downloads supplier documents
type Source interface {
	IsAuthorized() bool
	ListFiles(ctx context.Context, supplier config.Supplier, useCache bool) ([]FileMeta, error)
	FetchFile(ctx context.Context, file FileMeta) ([]byte, error)
}

const (
	driveMaxAttempts = 3
	driveMinBackoff  = 2 * time.Second
	driveMaxBackoff  = 10 * time.Second
)

var tabularMimeTypes = []string{MimeCSV, MimeXLSX, MimeXLS, MimeGoogleSheet}

type folderListing struct {
	files []FileMeta
	at    time.Time
}

// DriveSource reads supplier folders from Google Drive
type DriveSource struct {
	svc        *drive.Service
	listingTTL time.Duration
	timeout    time.Duration
	backoff    time.Duration

	mu       sync.Mutex
	listings map[string]folderListing
	now      func() time.Time
}

// NewDriveSource authenticates with a service account file or a stored OAuth
// token. Missing credentials are not an error: the source reports itself as
// unauthorized instead.
func NewDriveSource(ctx context.Context, cfg config.DriveConfig) (*DriveSource, error) {
	ds := &DriveSource{
		listingTTL: cfg.ListingCacheTTL,
		timeout:    cfg.RequestTimeout,
		backoff:    driveMinBackoff,
		listings:   make(map[string]folderListing),
		now:        time.Now,
	}

	opt, err := driveCredentials(ctx, cfg)
	if err != nil {
		return ds, err
	}
	if opt == nil {
		log.Printf("⚠️  Google Drive credentials not found, inventory search disabled")
		return ds, nil
	}

	svc, err := drive.NewService(ctx, opt)
	if err != nil {
		return ds, fmt.Errorf("failed to create drive service: %w", err)
	}
	ds.svc = svc
	return ds, nil
}

func driveCredentials(ctx context.Context, cfg config.DriveConfig) (option.ClientOption, error) {
	if data, err := os.ReadFile(cfg.ServiceAccountPath); err == nil {
		creds, err := google.CredentialsFromJSON(ctx, data, drive.DriveReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("invalid service account file: %w", err)
		}
		log.Printf("✅ Google Drive: using service account %s", cfg.ServiceAccountPath)
		return option.WithCredentials(creds), nil
	}

	secrets, err := os.ReadFile(cfg.CredentialsPath)
	if err != nil {
		return nil, nil
	}
	tokenFile, err := os.Open(cfg.TokenPath)
	if err != nil {
		log.Printf("⚠️  Google Drive: %s present but no token at %s", cfg.CredentialsPath, cfg.TokenPath)
		return nil, nil
	}
	defer tokenFile.Close()

	var token oauth2.Token
	if err := json.NewDecoder(tokenFile).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	oauthCfg, err := google.ConfigFromJSON(secrets, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("invalid OAuth client file: %w", err)
	}
	log.Printf("✅ Google Drive: using OAuth token %s", cfg.TokenPath)
	return option.WithHTTPClient(oauthCfg.Client(ctx, &token)), nil
}

// IsAuthorized reports whether Drive calls can be made
func (d *DriveSource) IsAuthorized() bool {
	return d != nil && d.svc != nil
}

// ListFiles returns tabular files in the supplier folder, newest first.
// With useCache a listing younger than the listing TTL is reused.
func (d *DriveSource) ListFiles(ctx context.Context, supplier config.Supplier, useCache bool) ([]FileMeta, error) {
	if !d.IsAuthorized() {
		return nil, ErrSourceUnavailable
	}

	if useCache {
		d.mu.Lock()
		cached, ok := d.listings[supplier.FolderID]
		d.mu.Unlock()
		if ok && d.now().Sub(cached.at) < d.listingTTL {
			return cached.files, nil
		}
	}

	mimeClauses := make([]string, len(tabularMimeTypes))
	for i, m := range tabularMimeTypes {
		mimeClauses[i] = fmt.Sprintf("mimeType = '%s'", m)
	}
	q := fmt.Sprintf("'%s' in parents and trashed = false and (%s)",
		strings.ReplaceAll(supplier.FolderID, "'", `\'`), strings.Join(mimeClauses, " or "))

	var files []FileMeta
	err := d.withRetry(ctx, func(ctx context.Context) error {
		files = files[:0]
		return d.svc.Files.List().
			Q(q).
			Fields("nextPageToken, files(id, name, mimeType, modifiedTime)").
			OrderBy("modifiedTime desc").
			PageSize(100).
			Pages(ctx, func(page *drive.FileList) error {
				for _, f := range page.Files {
					modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)
					files = append(files, FileMeta{
						ID:           f.Id,
						Name:         f.Name,
						MimeType:     f.MimeType,
						ModifiedTime: modified,
						Supplier:     supplier.Key,
					})
				}
				return nil
			})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list folder %s: %w", supplier.FolderID, err)
	}

	d.mu.Lock()
	d.listings[supplier.FolderID] = folderListing{files: files, at: d.now()}
	d.mu.Unlock()
	return files, nil
}

// FetchFile downloads a file; native Google Sheets are exported as xlsx
func (d *DriveSource) FetchFile(ctx context.Context, file FileMeta) ([]byte, error) {
	if !d.IsAuthorized() {
		return nil, ErrSourceUnavailable
	}

	var data []byte
	err := d.withRetry(ctx, func(ctx context.Context) error {
		var (
			body io.ReadCloser
			err  error
		)
		if file.MimeType == MimeGoogleSheet {
			resp, e := d.svc.Files.Export(file.ID, MimeXLSX).Context(ctx).Download()
			if e == nil {
				body = resp.Body
			}
			err = e
		} else {
			resp, e := d.svc.Files.Get(file.ID).Context(ctx).Download()
			if e == nil {
				body = resp.Body
			}
			err = e
		}
		if err != nil {
			return err
		}
		defer body.Close()

		data, err = io.ReadAll(body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", file.Name, err)
	}
	return data, nil
}

// withRetry runs fn with a per-attempt timeout, retrying transient failures
// with exponential backoff
func (d *DriveSource) withRetry(ctx context.Context, fn func(context.Context) error) error {
	delay := d.backoff
	var err error
	for attempt := 1; attempt <= driveMaxAttempts; attempt++ {
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if d.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, d.timeout)
		}
		err = fn(attemptCtx)
		cancel()

		if err == nil || !isTransient(err) || attempt == driveMaxAttempts {
			return err
		}

		log.Printf("Drive attempt %d failed: %v, retrying in %v", attempt, err, delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > driveMaxBackoff {
			delay = driveMaxBackoff
		}
	}
	return err
}

func isTransient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
