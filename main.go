package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/LITAT-AGC/hypnos/internal/config"
	"github.com/LITAT-AGC/hypnos/internal/embedder"
	"github.com/LITAT-AGC/hypnos/internal/extract"
	"github.com/LITAT-AGC/hypnos/internal/server"
	"github.com/LITAT-AGC/hypnos/internal/session"
)

func main() {
	transport := flag.String("transport", "stdio", "Transport mode: stdio or http")
	port := flag.String("port", "8081", "HTTP port (only used with --transport http)")
	configPath := flag.String("config", "", "Path to a YAML config file")
	root := flag.String("root", "", "Default project root (defaults to the working directory)")
	dataDir := flag.String("data-dir", "", "Directory for memory stores (overrides the config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	defaultRoot := *root
	if defaultRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			log.Fatalf("Failed to resolve working directory: %v", err)
		}
		defaultRoot = wd
	}

	// stdout carries the stdio transport, so logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	embed, err := embedder.NewCached(embedder.NewHash(cfg.Embedding.Dimensions), cfg.Embedding.CacheSize)
	if err != nil {
		log.Fatalf("Failed to build embedder: %v", err)
	}
	defer embed.Close()

	var extractor extract.Extractor
	switch cfg.Extraction.Provider {
	case "", "heuristic":
		extractor = extract.NewHeuristic()
	case "llm":
		extractor = extract.NewLLM(os.Getenv("ANTHROPIC_API_KEY"), cfg.Extraction.Model)
	default:
		log.Fatalf("Unknown extraction provider: %s (use heuristic or llm)", cfg.Extraction.Provider)
	}

	mgr := session.NewManager(cfg, embed, extractor, logger)
	defer mgr.CloseAll()

	// Build the MCP server with all tools registered
	srv := server.New(mgr, defaultRoot)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch *transport {
	case "stdio":
		log.Println("Memory server starting (stdio)")
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case "http":
		addr := ":" + *port
		handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
			return srv
		}, nil)
		log.Printf("Memory server listening on %s", addr)
		if err := http.ListenAndServe(addr, handler); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	default:
		log.Fatalf("Unknown transport: %s (use stdio or http)", *transport)
	}
}
