package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gigavector/gigavector"
)

var (
	dbPath     string
	dimensions int
	indexKind  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "gigavector",
	Short: "CLI tool for the GigaVector embeddable vector database",
	Long:  `A command-line interface for managing vectors, full-text documents, and indexes in a GigaVector database file.`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new, empty database file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if dimensions <= 0 {
			return fmt.Errorf("--dimensions must be positive")
		}
		cfg := gigavector.DefaultConfig(dimensions)
		kind, err := parseIndexKind(indexKind)
		if err != nil {
			return err
		}
		cfg.Index = kind

		db, err := gigavector.Open(cfg)
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		defer db.Close()

		if err := db.Save(dbPath); err != nil {
			return fmt.Errorf("failed to save database: %w", err)
		}
		fmt.Printf("database initialized at %s (dimensions=%d, index=%s)\n", dbPath, dimensions, indexKind)
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a vector row",
	RunE: func(cmd *cobra.Command, args []string) error {
		vectorStr, _ := cmd.Flags().GetString("vector")
		metadataStr, _ := cmd.Flags().GetString("metadata")
		text, _ := cmd.Flags().GetString("text")

		vector, err := parseVector(vectorStr)
		if err != nil {
			return err
		}

		metadata := make(map[string]string)
		if metadataStr != "" {
			if err := json.Unmarshal([]byte(metadataStr), &metadata); err != nil {
				return fmt.Errorf("invalid metadata JSON: %w", err)
			}
		}

		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		row, err := db.Add(vector, metadata)
		if err != nil {
			return fmt.Errorf("add failed: %w", err)
		}
		if text != "" {
			if err := db.IndexText(row, text); err != nil {
				return fmt.Errorf("index_text failed: %w", err)
			}
		}
		if err := db.Save(dbPath); err != nil {
			return fmt.Errorf("failed to save database: %w", err)
		}
		fmt.Printf("row %d added\n", row)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <row>",
	Short: "Delete a row by index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		row, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid row index: %w", err)
		}
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Delete(row); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}
		if err := db.Save(dbPath); err != nil {
			return fmt.Errorf("failed to save database: %w", err)
		}
		fmt.Printf("row %d deleted\n", row)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search for the nearest rows to a query vector",
	RunE: func(cmd *cobra.Command, args []string) error {
		vectorStr, _ := cmd.Flags().GetString("vector")
		k, _ := cmd.Flags().GetInt("top-k")
		distStr, _ := cmd.Flags().GetString("dist")
		filterStr, _ := cmd.Flags().GetString("filter")
		outputJSON, _ := cmd.Flags().GetBool("json")

		vector, err := parseVector(vectorStr)
		if err != nil {
			return err
		}
		dist, err := parseDistKind(distStr)
		if err != nil {
			return err
		}

		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		var results []gigavector.ScoredEmbedding
		if filterStr != "" {
			results, err = db.SearchFiltered(vector, gigavector.SearchOptions{
				TopK:   k,
				Dist:   dist,
				Filter: parseFilter(filterStr),
			})
		} else {
			results, err = db.Search(vector, k, dist)
		}
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		if outputJSON {
			data, _ := json.MarshalIndent(results, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		fmt.Printf("found %d results:\n", len(results))
		for i, r := range results {
			fmt.Printf("%d. row=%d score=%.6f\n", i+1, r.Row, r.Score)
			if verbose && len(r.Metadata) > 0 {
				fmt.Printf("   metadata: %v\n", r.Metadata)
			}
		}
		return nil
	},
}

var searchTextCmd = &cobra.Command{
	Use:   "search-text <query>",
	Short: "Run BM25 full-text search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := args[0]
		k, _ := cmd.Flags().GetInt("top-k")
		outputJSON, _ := cmd.Flags().GetBool("json")

		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		results, err := db.SearchText(query, k)
		if err != nil {
			return fmt.Errorf("search_text failed: %w", err)
		}
		if outputJSON {
			data, _ := json.MarshalIndent(results, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		fmt.Printf("found %d results:\n", len(results))
		for i, r := range results {
			fmt.Printf("%d. row=%d score=%.6f\n", i+1, r.Row, r.Score)
		}
		return nil
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Reclaim tombstoned rows and renumber the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Compact(); err != nil {
			return fmt.Errorf("compact failed: %w", err)
		}
		if err := db.Save(dbPath); err != nil {
			return fmt.Errorf("failed to save database: %w", err)
		}
		fmt.Println("database compacted")
		return nil
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the database under a different index kind",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		newKind, err := parseIndexKind(indexKind)
		if err != nil {
			return err
		}
		newCfg := gigavector.DefaultConfig(db.Dimension())
		newCfg.Index = newKind

		if err := db.Reindex(context.Background(), newCfg); err != nil {
			return fmt.Errorf("reindex failed: %w", err)
		}
		if err := db.Save(dbPath); err != nil {
			return fmt.Errorf("failed to save database: %w", err)
		}
		fmt.Printf("database reindexed to %s\n", indexKind)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display database statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		outputJSON, _ := cmd.Flags().GetBool("json")

		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		if outputJSON {
			data, _ := json.MarshalIndent(map[string]any{
				"count":     db.Count(),
				"dimension": db.Dimension(),
			}, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		fmt.Println("Database Statistics:")
		fmt.Printf("  Rows: %d\n", db.Count())
		fmt.Printf("  Dimension: %d\n", db.Dimension())
		return nil
	},
}

func parseVector(str string) ([]float32, error) {
	if str == "" {
		return nil, fmt.Errorf("vector is required")
	}
	parts := strings.Split(str, ",")
	vector := make([]float32, 0, len(parts))
	for _, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector format: %w", err)
		}
		vector = append(vector, float32(val))
	}
	return vector, nil
}

func parseFilter(str string) map[string]string {
	filter := make(map[string]string)
	for _, pair := range strings.Split(str, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 {
			filter[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
	}
	return filter
}

func parseDistKind(s string) (gigavector.DistanceKind, error) {
	switch strings.ToLower(s) {
	case "", "euclidean":
		return gigavector.Euclidean, nil
	case "cosine":
		return gigavector.Cosine, nil
	case "dot":
		return gigavector.Dot, nil
	case "hamming":
		return gigavector.Hamming, nil
	default:
		return 0, fmt.Errorf("unknown distance kind %q", s)
	}
}

func parseIndexKind(s string) (gigavector.IndexKind, error) {
	switch strings.ToLower(s) {
	case "", "flat":
		return gigavector.IndexFlat, nil
	case "hnsw":
		return gigavector.IndexHNSW, nil
	case "ivf-flat":
		return gigavector.IndexIVFFlat, nil
	case "ivf-pq":
		return gigavector.IndexIVFPQ, nil
	case "ivf-sq":
		return gigavector.IndexIVFSQ, nil
	case "lsh":
		return gigavector.IndexLSH, nil
	case "sparse":
		return gigavector.IndexSparse, nil
	default:
		return 0, fmt.Errorf("unknown index kind %q", s)
	}
}

func openDatabase() (*gigavector.Database, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path not specified")
	}
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("database file not found, run 'gigavector init' first: %w", err)
	}
	db, err := gigavector.Load(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "vectors.gdb", "Database file path")
	rootCmd.PersistentFlags().IntVarP(&dimensions, "dimensions", "n", 0, "Vector dimensions (init only)")
	rootCmd.PersistentFlags().StringVar(&indexKind, "index", "flat", "Index kind: flat, hnsw, ivf-flat, ivf-pq, ivf-sq, lsh, sparse")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	addCmd.Flags().String("vector", "", "Vector values (comma-separated)")
	addCmd.Flags().String("metadata", "", "Metadata as JSON")
	addCmd.Flags().String("text", "", "Text to index for full-text search")
	addCmd.MarkFlagRequired("vector")

	searchCmd.Flags().String("vector", "", "Query vector (comma-separated)")
	searchCmd.Flags().Int("top-k", 10, "Number of results")
	searchCmd.Flags().String("dist", "euclidean", "Distance kind: euclidean, cosine, dot, hamming")
	searchCmd.Flags().String("filter", "", "Metadata filters (key=value,key2=value2)")
	searchCmd.Flags().Bool("json", false, "Output as JSON")
	searchCmd.MarkFlagRequired("vector")

	searchTextCmd.Flags().Int("top-k", 10, "Number of results")
	searchTextCmd.Flags().Bool("json", false, "Output as JSON")

	statsCmd.Flags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		initCmd,
		addCmd,
		deleteCmd,
		searchCmd,
		searchTextCmd,
		compactCmd,
		reindexCmd,
		statsCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
