// Package knowledge is the shared plant care knowledge base: curated documents
// embedded into their own vector namespace, searchable by every user.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"plant-assistant-be/internal/pkg/logger"
	"plant-assistant-be/pkg/embedding"
	"plant-assistant-be/pkg/vectorstore"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Namespace never collides with a user namespace, which is always a uuid.
const Namespace = "plant_knowledge"

const (
	role             = "knowledge"
	indexParallelism = 4
	maxCandidates    = 200
	dedupePrefix     = 100
)

var ErrEmptyQuery = errors.New("knowledge: query is empty")

type Document struct {
	ID        string
	Text      string
	Source    string
	Category  string
	PlantType string
	CareType  string
	Season    string
}

type IndexResult struct {
	Successful int
	Failed     int
	Total      int
	IDs        []string
}

type SearchQuery struct {
	Query          string
	Category       string
	PlantType      string
	TopK           int
	ScoreThreshold float32
}

type Hit struct {
	ID        string
	Text      string
	Score     float32
	Source    string
	Category  string
	PlantType string
	CareType  string
	Season    string
	IndexedAt time.Time
}

type Base struct {
	embedder embedding.EmbeddingProvider
	vectors  vectorstore.Catalog
	logger   logger.ILogger
}

func NewBase(embedder embedding.EmbeddingProvider, vectors vectorstore.Catalog, logger logger.ILogger) *Base {
	return &Base{embedder: embedder, vectors: vectors, logger: logger}
}

// DocumentID maps a caller-chosen reference onto the uuid the vector stores key by.
// The same reference always lands on the same record, so re-indexing overwrites.
func DocumentID(ref string) string {
	if ref == "" {
		return uuid.NewString()
	}
	if id, err := uuid.Parse(ref); err == nil {
		return id.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(Namespace+":"+ref)).String()
}

// Index embeds and stores every document. A failing document is counted and skipped.
func (b *Base) Index(ctx context.Context, docs []Document) IndexResult {
	res := IndexResult{Total: len(docs), IDs: make([]string, len(docs))}
	ok := make([]bool, len(docs))

	g := new(errgroup.Group)
	g.SetLimit(indexParallelism)
	for i, doc := range docs {
		res.IDs[i] = DocumentID(doc.ID)
		g.Go(func() error {
			if err := b.put(ctx, res.IDs[i], doc); err != nil {
				b.logger.Warn("KNOWLEDGE", "Document not indexed", map[string]interface{}{
					"id":    res.IDs[i],
					"error": err.Error(),
				})
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	for _, indexed := range ok {
		if indexed {
			res.Successful++
		} else {
			res.Failed++
		}
	}
	b.logger.Info("KNOWLEDGE", "Documents indexed", map[string]interface{}{
		"successful": res.Successful,
		"failed":     res.Failed,
	})
	return res
}

func (b *Base) put(ctx context.Context, id string, doc Document) error {
	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return errors.New("document text is empty")
	}
	emb, err := b.embedder.Generate(ctx, text, embedding.TaskRetrievalDocument)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	return b.vectors.Upsert(ctx, id, emb.Embedding.Values, vectorstore.Metadata{
		UserID:    Namespace,
		Role:      role,
		Content:   text,
		Tags:      encodeTags(doc),
		Timestamp: time.Now(),
	})
}

// Search returns the best matches at or above the score threshold, filtered by
// category and plant type. Near-identical passages collapse to the best one.
func (b *Base) Search(ctx context.Context, q SearchQuery) ([]Hit, error) {
	query := strings.TrimSpace(q.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	topK := q.TopK
	if topK <= 0 {
		topK = 10
	}

	emb, err := b.embedder.Generate(ctx, expandQuery(query), embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// filters run after the vector search, so over-fetch
	candidates := min(topK*4, maxCandidates)
	matches, err := b.vectors.Query(ctx, emb.Embedding.Values, Namespace, candidates)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, topK)
	seen := make(map[string]bool)
	for _, m := range matches {
		if m.Score < q.ScoreThreshold {
			continue
		}
		hit := decodeHit(m)
		if q.Category != "" && !strings.EqualFold(hit.Category, q.Category) {
			continue
		}
		if q.PlantType != "" && !strings.EqualFold(hit.PlantType, q.PlantType) {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(hit.Text))
		if len(key) > dedupePrefix {
			key = key[:dedupePrefix]
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		hits = append(hits, hit)
		if len(hits) == topK {
			break
		}
	}
	return hits, nil
}

// Passages is the plain-text view the care guide tool grounds its prompt on.
func (b *Base) Passages(ctx context.Context, query string, topK int) ([]string, error) {
	hits, err := b.Search(ctx, SearchQuery{Query: query, TopK: topK, ScoreThreshold: 0.5})
	if err != nil {
		return nil, err
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Text
	}
	return out, nil
}

// Delete reports false when the document does not exist.
func (b *Base) Delete(ctx context.Context, ref string) (bool, error) {
	return b.vectors.Delete(ctx, Namespace, DocumentID(ref))
}

func (b *Base) Count(ctx context.Context) (int, error) {
	return b.vectors.CountNamespace(ctx, Namespace)
}

var queryHints = []struct {
	words []string
	hint  string
}{
	{[]string{"water", "watering"}, "watering frequency care schedule"},
	{[]string{"light", "lighting", "sun"}, "light requirements indoor placement"},
	{[]string{"fertilize", "fertilizer", "nutrients", "feed"}, "fertilization nutrients feeding schedule"},
	{[]string{"sick", "dying", "problem", "yellow", "brown", "spots"}, "plant health diagnosis symptoms treatment"},
}

// expandQuery appends topic hints so short questions land near the curated passages.
func expandQuery(query string) string {
	lower := strings.ToLower(query)
	parts := []string{query}
	for _, h := range queryHints {
		for _, w := range h.words {
			if strings.Contains(lower, w) {
				parts = append(parts, h.hint)
				break
			}
		}
	}
	return strings.Join(parts, " ")
}

// Tags carry the document attributes as key:value pairs. Chromem joins tags with
// commas, so commas inside a value are dropped.
func encodeTags(doc Document) []string {
	var tags []string
	add := func(key, value string) {
		if value = strings.TrimSpace(strings.ReplaceAll(value, ",", " ")); value != "" {
			tags = append(tags, key+":"+value)
		}
	}
	add("source", doc.Source)
	add("category", doc.Category)
	add("plant_type", doc.PlantType)
	add("care_type", doc.CareType)
	add("season", doc.Season)
	return tags
}

func decodeHit(m vectorstore.Match) Hit {
	hit := Hit{ID: m.ID, Text: m.Metadata.Content, Score: m.Score, IndexedAt: m.Metadata.Timestamp}
	for _, tag := range m.Metadata.Tags {
		key, value, ok := strings.Cut(tag, ":")
		if !ok {
			continue
		}
		switch key {
		case "source":
			hit.Source = value
		case "category":
			hit.Category = value
		case "plant_type":
			hit.PlantType = value
		case "care_type":
			hit.CareType = value
		case "season":
			hit.Season = value
		}
	}
	return hit
}
