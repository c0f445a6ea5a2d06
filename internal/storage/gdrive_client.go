package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/transcript"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveClient exports finished transcripts to Google Drive
type DriveClient struct {
	service    *drive.Service
	folderName string
	folderID   string
	log        zerolog.Logger
}

// NewDriveClient creates a Drive client from OAuth client credentials and a
// cached token. Without a cached token the authorization flow runs on the
// terminal, which only works for interactive runs.
func NewDriveClient(ctx context.Context, credentialsFile, tokenFile, folderName string, log zerolog.Logger) (*DriveClient, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	client, err := getClient(ctx, config, tokenFile)
	if err != nil {
		return nil, err
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %w", err)
	}

	dc := &DriveClient{
		service:    srv,
		folderName: folderName,
		log:        log.With().Str("component", "gdrive").Logger(),
	}
	if dc.folderID, err = dc.findOrCreateFolder(ctx, folderName, ""); err != nil {
		return nil, fmt.Errorf("unable to prepare folder %q: %w", folderName, err)
	}
	return dc, nil
}

// getClient retrieves a cached token or runs the terminal flow and caches it.
func getClient(ctx context.Context, config *oauth2.Config, tokenFile string) (*http.Client, error) {
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		tok, err = getTokenFromWeb(ctx, config)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokenFile, tok); err != nil {
			return nil, err
		}
	}
	return config.Client(ctx, tok), nil
}

func getTokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser:\n%v\n", authURL)
	fmt.Print("Enter authorization code: ")

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}

	tok, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// Upload exports the flat transcript, hierarchy and metadata into
// <folder>/YYYY/MM/DD/ and returns a link to the metadata file.
func (dc *DriveClient) Upload(ctx context.Context, requestName string, result *types.TranscriptionResult) (string, error) {
	now := time.Now()
	folderID, err := dc.ensureDateFolder(ctx, now)
	if err != nil {
		return "", err
	}

	base := fmt.Sprintf("%s_%s", now.Format("20060102_150405"), sanitizeFilename(requestName))

	if _, err := dc.create(ctx, base+".txt", folderID, []byte(result.Text)); err != nil {
		return "", fmt.Errorf("failed to upload transcript: %w", err)
	}

	doc, err := transcript.MarshalDocument(result.Tree)
	if err != nil {
		return "", err
	}
	if _, err := dc.create(ctx, base+"_hierarchy.json", folderID, doc); err != nil {
		return "", fmt.Errorf("failed to upload hierarchy: %w", err)
	}

	metaJSON, err := json.MarshalIndent(NewMetadata(requestName, result), "", "  ")
	if err != nil {
		return "", err
	}
	metaID, err := dc.create(ctx, base+"_meta.json", folderID, metaJSON)
	if err != nil {
		return "", fmt.Errorf("failed to upload metadata: %w", err)
	}

	dc.log.Info().Str("request", requestName).Str("file_id", metaID).Msg("Transcript exported to Drive")
	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", metaID), nil
}

func (dc *DriveClient) create(ctx context.Context, name, parentID string, content []byte) (string, error) {
	f := &drive.File{Name: name, Parents: []string{parentID}}
	created, err := dc.service.Files.Create(f).Media(bytes.NewReader(content)).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return created.Id, nil
}

// ensureDateFolder creates nested year/month/day folders
func (dc *DriveClient) ensureDateFolder(ctx context.Context, t time.Time) (string, error) {
	parent := dc.folderID
	for _, name := range []string{
		fmt.Sprintf("%d", t.Year()),
		fmt.Sprintf("%02d", t.Month()),
		fmt.Sprintf("%02d", t.Day()),
	} {
		id, err := dc.findOrCreateFolder(ctx, name, parent)
		if err != nil {
			return "", err
		}
		parent = id
	}
	return parent, nil
}

// findOrCreateFolder finds or creates a folder. An empty parentID searches
// the whole drive.
func (dc *DriveClient) findOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	if name == "" {
		return "", errors.New("folder name is empty")
	}
	query := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", escapeQuery(name), folderMimeType)
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", parentID)
	}

	r, err := dc.service.Files.List().Q(query).Spaces("drive").Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to search for folder: %w", err)
	}
	if len(r.Files) > 0 {
		return r.Files[0].Id, nil
	}

	folder := &drive.File{Name: name, MimeType: folderMimeType}
	if parentID != "" {
		folder.Parents = []string{parentID}
	}
	file, err := dc.service.Files.Create(folder).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create folder: %w", err)
	}
	return file.Id, nil
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
