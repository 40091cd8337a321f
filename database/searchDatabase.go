package database

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/mapping"

	"github.com/drummonds/playday/igdb"
)

// CatalogIndex is a local full text index of every catalog game the server has seen. It
// answers searches when IGDB is not configured.
type CatalogIndex struct {
	index bleve.Index
}

func catalogMapping() mapping.IndexMapping {
	nameField := bleve.NewTextFieldMapping()
	payloadField := bleve.NewTextFieldMapping()
	payloadField.Index = false
	payloadField.IncludeInAll = false

	gameMapping := bleve.NewDocumentMapping()
	gameMapping.AddFieldMappingsAt("name", nameField)
	gameMapping.AddFieldMappingsAt("payload", payloadField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = gameMapping
	return indexMapping
}

// SetupSearchDB sets up new bleve or opens existing
func SetupSearchDB(path string) (*CatalogIndex, error) {
	var index bleve.Index
	_, err := os.Stat(filepath.Clean(path))
	if os.IsNotExist(err) {
		Logger.Info("Creating new bleve index", "path", path)
		if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
			return nil, err
		}
		index, err = bleve.New(filepath.Clean(path), catalogMapping())
		if err != nil {
			Logger.Error("Failed to create bleve index", "error", err)
			return nil, err
		}
	} else {
		Logger.Info("Opening existing bleve index", "path", path)
		index, err = bleve.Open(filepath.Clean(path))
		if err != nil {
			Logger.Error("Failed to open bleve index", "error", err)
			return nil, err
		}
	}
	return &CatalogIndex{index: index}, nil
}

// NewMemCatalogIndex returns an index that lives only in memory
func NewMemCatalogIndex() (*CatalogIndex, error) {
	index, err := bleve.NewMemOnly(catalogMapping())
	if err != nil {
		return nil, err
	}
	return &CatalogIndex{index: index}, nil
}

func (c *CatalogIndex) Close() error {
	return c.index.Close()
}

// IndexGames adds or replaces the games, keyed by IGDB id
func (c *CatalogIndex) IndexGames(games []igdb.Game) error {
	if len(games) == 0 {
		return nil
	}
	batch := c.index.NewBatch()
	for _, game := range games {
		payload, err := json.Marshal(game)
		if err != nil {
			return err
		}
		doc := map[string]interface{}{
			"name":    game.Name,
			"payload": string(payload),
		}
		if err := batch.Index(strconv.FormatInt(game.ID, 10), doc); err != nil {
			return err
		}
	}
	return c.index.Batch(batch)
}

// Search matches keyword against game names, either as words or as a prefix
func (c *CatalogIndex) Search(keyword string, limit int) ([]igdb.Game, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []igdb.Game{}, nil
	}
	match := bleve.NewMatchQuery(keyword)
	match.SetField("name")
	prefix := bleve.NewPrefixQuery(strings.ToLower(keyword))
	prefix.SetField("name")

	request := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(match, prefix), limit, 0, false)
	request.Fields = []string{"payload"}
	result, err := c.index.Search(request)
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}

	games := make([]igdb.Game, 0, len(result.Hits))
	for _, hit := range result.Hits {
		payload, ok := hit.Fields["payload"].(string)
		if !ok {
			Logger.Warn("Catalog hit without payload", "id", hit.ID)
			continue
		}
		var game igdb.Game
		if err := json.Unmarshal([]byte(payload), &game); err != nil {
			Logger.Warn("Catalog hit with bad payload", "id", hit.ID, "error", err)
			continue
		}
		games = append(games, game)
	}
	return games, nil
}

// Count returns the number of indexed games
func (c *CatalogIndex) Count() (uint64, error) {
	return c.index.DocCount()
}
