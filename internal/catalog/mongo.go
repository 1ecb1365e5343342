package catalog

import (
	"context"
	"fmt"

	"live-tick-excel/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const insertBatch = 5000

// RepoItf is the instrument master stored in MongoDB.
type RepoItf interface {
	Catalog
	EnsureIndexes(ctx context.Context) error
	ReplaceAll(ctx context.Context, instruments []models.CatalogInstrument) (int, error)
	Count(ctx context.Context) (int64, error)
}

type Repo struct {
	ic *mongo.Collection
}

var _ RepoItf = (*Repo)(nil)

func NewRepo(instrumentCollection *mongo.Collection) *Repo {
	return &Repo{ic: instrumentCollection}
}

func (rp *Repo) EnsureIndexes(ctx context.Context) error {
	_, err := rp.ic.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "instrument_token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "tradingsymbol", Value: 1}, {Key: "exchange", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("create instrument indexes: %w", err)
	}
	return nil
}

// Lookup returns matches sorted by instrument type, expiry and strike.
func (rp *Repo) Lookup(ctx context.Context, exchange, symbol string) ([]models.CatalogInstrument, error) {
	filter := bson.D{{Key: "tradingsymbol", Value: symbol}}
	if exchange != "" {
		filter = append(filter, bson.E{Key: "exchange", Value: exchange})
	}

	results, err := rp.ic.Find(ctx, filter, options.Find().SetSort(bson.D{
		{Key: "instrument_type", Value: 1},
		{Key: "expiry", Value: 1},
		{Key: "strike", Value: 1},
	}))
	if err != nil {
		return nil, err
	}
	defer results.Close(ctx)

	var instruments []models.CatalogInstrument
	if err = results.All(ctx, &instruments); err != nil {
		return nil, err
	}
	return instruments, nil
}

// ReplaceAll swaps the stored master for instruments. It is not atomic;
// readers may briefly see a partial master during a sync.
func (rp *Repo) ReplaceAll(ctx context.Context, instruments []models.CatalogInstrument) (int, error) {
	if _, err := rp.ic.DeleteMany(ctx, bson.M{}); err != nil {
		return 0, fmt.Errorf("clear instruments: %w", err)
	}

	inserted := 0
	for start := 0; start < len(instruments); start += insertBatch {
		end := min(start+insertBatch, len(instruments))
		docs := make([]any, 0, end-start)
		for _, inst := range instruments[start:end] {
			docs = append(docs, inst)
		}
		res, err := rp.ic.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
		if res != nil {
			inserted += len(res.InsertedIDs)
		}
		if err != nil {
			return inserted, fmt.Errorf("insert instruments %d-%d: %w", start, end, err)
		}
	}
	return inserted, nil
}

func (rp *Repo) Count(ctx context.Context) (int64, error) {
	return rp.ic.CountDocuments(ctx, bson.M{})
}
