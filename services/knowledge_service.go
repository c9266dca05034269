package services

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"github/itish2003/healthagent/models"
	"github/itish2003/healthagent/vectorstore"
)

// KnowledgeService indexes health knowledge (seed URLs and a local directory)
// and user logs into the vector store, and retrieves evidence from it.
type KnowledgeService struct {
	store      vectorstore.Store
	embedder   Embedder
	httpClient *http.Client

	seedURLsFile string
	knowledgeDir string

	knowledgeSplitter textsplitter.TextSplitter
	userLogSplitter   textsplitter.TextSplitter
}

func NewKnowledgeService(store vectorstore.Store, embedder Embedder, httpClient *http.Client, seedURLsFile, knowledgeDir string) *KnowledgeService {
	return &KnowledgeService{
		store:             store,
		embedder:          embedder,
		httpClient:        httpClient,
		seedURLsFile:      seedURLsFile,
		knowledgeDir:      knowledgeDir,
		knowledgeSplitter: textsplitter.NewRecursiveCharacter(textsplitter.WithChunkSize(1000), textsplitter.WithChunkOverlap(150)),
		userLogSplitter:   textsplitter.NewRecursiveCharacter(textsplitter.WithChunkSize(800), textsplitter.WithChunkOverlap(120)),
	}
}

// Reindex rebuilds every seed URL and syncs the knowledge directory. A URL
// that cannot be fetched is logged and skipped.
func (s *KnowledgeService) Reindex(ctx context.Context) (urls int, chunks int, err error) {
	list, err := ReadSeedURLs(s.seedURLsFile)
	if err != nil {
		return 0, 0, err
	}
	log.Printf("INDEXER: Reindexing %d seed URLs...", len(list))

	for _, u := range list {
		if err := ctx.Err(); err != nil {
			return len(list), chunks, err
		}
		n, err := s.IndexURL(ctx, u)
		if err != nil {
			log.Printf("INDEXER ERROR: Failed to index %s: %v", u, err)
			continue
		}
		chunks += n
	}

	if s.knowledgeDir != "" {
		s.ScanAndIndexDirectory(ctx, s.knowledgeDir)
	}
	log.Printf("INDEXER: Reindex finished, %d chunks from URLs.", chunks)
	return len(list), chunks, nil
}

// ReadSeedURLs reads one URL per line, ignoring blanks and '#' comments.
func ReadSeedURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed urls: %w", err)
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read seed urls: %w", err)
	}
	return urls, nil
}

// IndexURL fetches one page and replaces its chunks in the store.
func (s *KnowledgeService) IndexURL(ctx context.Context, rawURL string) (int, error) {
	text, err := FetchPageText(ctx, s.httpClient, rawURL)
	if err != nil {
		return 0, err
	}
	if err := s.store.DeleteBySource(ctx, rawURL); err != nil {
		return 0, err
	}
	return s.indexText(ctx, s.knowledgeSplitter, text, vectorstore.Document{
		Kind:   vectorstore.KindKnowledge,
		Source: rawURL,
		Hash:   hashString(text),
	})
}

// IngestUserText indexes a user's own log text so chat and query can cite it.
// When replace is set the source's earlier chunks are removed first.
func (s *KnowledgeService) IngestUserText(ctx context.Context, userID, source, text string, replace bool) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyInput
	}
	if replace {
		if err := s.store.DeleteBySource(ctx, source); err != nil {
			return 0, err
		}
	}
	return s.indexText(ctx, s.userLogSplitter, text, vectorstore.Document{
		Kind:   vectorstore.KindUserLog,
		Source: source,
		UserID: userID,
	})
}

func (s *KnowledgeService) indexText(ctx context.Context, splitter textsplitter.TextSplitter, text string, base vectorstore.Document) (int, error) {
	chunks, err := splitter.SplitText(text)
	if err != nil {
		return 0, fmt.Errorf("split %s: %w", base.Source, err)
	}
	log.Printf("INDEXER: Split %s into %d chunks.", base.Source, len(chunks))

	docs := make([]vectorstore.Document, 0, len(chunks))
	for i, chunk := range chunks {
		vec, err := s.embedder.Embed(ctx, chunk)
		if err != nil {
			return 0, fmt.Errorf("could not embed chunk %d of %s: %w", i, base.Source, err)
		}
		d := base
		d.ID = fmt.Sprintf("%s-chunk%d", uuid.New().String(), i)
		d.Text = chunk
		d.Embedding = vec
		d.Chunk = i
		docs = append(docs, d)
	}
	if err := s.store.Add(ctx, docs...); err != nil {
		return 0, err
	}
	indexedChunks.WithLabelValues(base.Kind).Add(float64(len(docs)))
	return len(docs), nil
}

// Retrieve embeds the query and returns the k nearest snippets.
func (s *KnowledgeService) Retrieve(ctx context.Context, query string, k int, filter vectorstore.Filter) ([]models.Snippet, error) {
	log.Printf("SERVICE-HELPER: Retrieving %d documents for %q", k, query)
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query text: %w", err)
	}
	matches, err := s.store.Query(ctx, vec, k, filter)
	if err != nil {
		return nil, err
	}
	snippets := make([]models.Snippet, 0, len(matches))
	for _, m := range matches {
		snippets = append(snippets, models.Snippet{Text: m.Text, Source: m.Source, Score: m.Score})
	}
	log.Printf("SERVICE-HELPER: Retrieved %d documents", len(snippets))
	return snippets, nil
}

// List returns every stored chunk with the store's total count.
func (s *KnowledgeService) List(ctx context.Context) (*models.KnowledgeListResponse, error) {
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.KnowledgeDocument, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.KnowledgeDocument{ID: d.ID, Text: d.Text, Metadata: d.Metadata()})
	}
	return &models.KnowledgeListResponse{Count: total, Documents: out}, nil
}

// ScanAndIndexDirectory syncs dirPath with the store: new and changed files
// are (re)indexed, files no longer on disk are removed.
func (s *KnowledgeService) ScanAndIndexDirectory(ctx context.Context, dirPath string) {
	log.Printf("INDEXER: Starting directory scan for: %s", dirPath)
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		log.Printf("INDEXER: Directory %s does not exist, nothing to scan.", dirPath)
		return
	}

	indexed, err := s.store.SourceHashes(ctx)
	if err != nil {
		log.Printf("INDEXER ERROR: Could not get current index state: %v", err)
		return
	}

	localFiles := make(map[string]bool)
	err = filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isSupportedFile(path) {
			return nil
		}
		localFiles[path] = true
		hash, err := calculateFileHash(path)
		if err != nil {
			log.Printf("INDEXER WARN: Could not hash file %s: %v", path, err)
			return nil
		}
		if prev, ok := indexed[path]; ok && prev == hash {
			return nil
		}
		log.Printf("INDEXER: Indexing new/modified file: %s", path)
		if err := s.indexFile(ctx, path, hash); err != nil {
			log.Printf("INDEXER ERROR: Failed to process file %s: %v", path, err)
		}
		return nil
	})
	if err != nil {
		log.Printf("INDEXER ERROR: Error walking the path %s: %v", dirPath, err)
	}

	prefix := filepath.Clean(dirPath) + string(filepath.Separator)
	for source := range indexed {
		if strings.HasPrefix(source, prefix) && !localFiles[source] {
			log.Printf("INDEXER: File deleted: %s. Removing from index...", source)
			if err := s.store.DeleteBySource(ctx, source); err != nil {
				log.Printf("INDEXER ERROR: Failed to delete records for %s: %v", source, err)
			}
		}
	}
	log.Println("INDEXER: Directory scan finished.")
}

func (s *KnowledgeService) indexFile(ctx context.Context, path, hash string) error {
	text, err := ExtractTextFromFile(path)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBySource(ctx, path); err != nil {
		return err
	}
	_, err = s.indexText(ctx, s.knowledgeSplitter, text, vectorstore.Document{
		Kind:   vectorstore.KindKnowledge,
		Source: path,
		Hash:   hash,
	})
	return err
}

// WatchDirectory re-indexes knowledge files as they change until ctx is done.
// Subdirectories are watched too, including ones created later.
func (s *KnowledgeService) WatchDirectory(ctx context.Context, dirPath string) {
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		log.Printf("WATCHER ERROR: Could not create %s: %v", dirPath, err)
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("WATCHER ERROR: Failed to create file watcher: %v", err)
		return
	}
	defer watcher.Close()

	if err := addWatchTree(watcher, dirPath); err != nil {
		log.Printf("WATCHER ERROR: Failed to add path to watcher: %v", err)
		return
	}
	log.Printf("WATCHER: Watching directory tree: %s", dirPath)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(ctx, watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("WATCHER ERROR: %v", err)
		case <-ctx.Done():
			log.Println("WATCHER: Context cancelled, shutting down watcher.")
			return
		}
	}
}

// addWatchTree registers root and every directory below it.
func addWatchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return watcher.Add(path)
	})
}

func (s *KnowledgeService) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			log.Printf("WATCHER: Directory created: %s. Watching and indexing...", event.Name)
			if err := addWatchTree(watcher, event.Name); err != nil {
				log.Printf("WATCHER ERROR: Failed to watch %s: %v", event.Name, err)
			}
			// Files may land before the watch is registered.
			s.ScanAndIndexDirectory(ctx, event.Name)
			return
		}
	}
	if !isSupportedFile(event.Name) {
		if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
			s.removeTree(ctx, event.Name)
		}
		return
	}
	// Editors often save via create+rename, so Create and Write are handled alike.
	switch {
	case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
		log.Printf("WATCHER: File modified/created: %s. Re-indexing...", event.Name)
		hash, err := calculateFileHash(event.Name)
		if err != nil {
			log.Printf("WATCHER WARN: Could not hash file %s: %v", event.Name, err)
			return
		}
		if err := s.indexFile(ctx, event.Name, hash); err != nil {
			log.Printf("WATCHER ERROR: Failed to process file %s: %v", event.Name, err)
		}
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		log.Printf("WATCHER: File removed/renamed: %s. Removing from index...", event.Name)
		if err := s.store.DeleteBySource(ctx, event.Name); err != nil {
			log.Printf("WATCHER ERROR: Failed to delete records for %s: %v", event.Name, err)
		}
	}
}

// removeTree drops every indexed source below a removed directory.
func (s *KnowledgeService) removeTree(ctx context.Context, dirPath string) {
	indexed, err := s.store.SourceHashes(ctx)
	if err != nil {
		log.Printf("WATCHER ERROR: Could not get current index state: %v", err)
		return
	}
	prefix := filepath.Clean(dirPath) + string(filepath.Separator)
	for source := range indexed {
		if !strings.HasPrefix(source, prefix) {
			continue
		}
		log.Printf("WATCHER: Parent directory removed: %s. Removing from index...", source)
		if err := s.store.DeleteBySource(ctx, source); err != nil {
			log.Printf("WATCHER ERROR: Failed to delete records for %s: %v", source, err)
		}
	}
}

func isSupportedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".pdf":
		return true
	default:
		return false
	}
}

func calculateFileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
