package static

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

// IndexFile is the document served at the site root.
const IndexFile = "index.html"

// PathValue is the wildcard name asset routes must use for the file path.
const PathValue = "path"

// Server serves files confined to a base directory.
type Server struct {
	root *os.Root
	log  *slog.Logger
}

// New opens baseDir as the root for all served files.
func New(baseDir string, log *slog.Logger) (*Server, error) {
	root, err := os.OpenRoot(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open static root: %w", err)
	}

	return &Server{root: root, log: log}, nil
}

// Close releases the base directory.
func (s *Server) Close() error {
	return s.root.Close()
}

// Index returns a handler for the index document.
func (s *Server) Index() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.serveFile(w, r, s.root, IndexFile)
	})
}

// Dir returns a handler for files below the named subdirectory. The file path
// is read from the {path...} wildcard of the route. Paths that leave the
// subdirectory, directories and missing files all answer 404.
func (s *Server) Dir(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rel := r.PathValue(PathValue)
		if rel == "" {
			http.NotFound(w, r)
			return
		}

		sub, err := s.root.OpenRoot(name)
		if err != nil {
			s.log.DebugContext(r.Context(), "Asset root unavailable", "root", name, "error", err)
			http.NotFound(w, r)
			return
		}
		defer sub.Close()

		s.serveFile(w, r, sub, rel)
	})
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, root *os.Root, name string) {
	file, err := root.Open(filepath.FromSlash(name))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.WarnContext(r.Context(), "Rejected file request", "path", name, "error", err)
		}
		http.NotFound(w, r)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}
