// Package mongo implements the business store on MongoDB, reading the
// camelCase documents of the original directory collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
)

const collectionName = "businesses"

// Store holds the client and the directory collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// New connects to uri and pings the server.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{client: client, coll: client.Database(database).Collection(collectionName)}, nil
}

// Ping checks the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type businessDoc struct {
	ID              bson.ObjectID `bson:"_id,omitempty"`
	ExternalID      string        `bson:"externalId,omitempty"`
	Source          string        `bson:"source,omitempty"`
	Name            string        `bson:"name"`
	Address         string        `bson:"address,omitempty"`
	City            string        `bson:"city,omitempty"`
	Country         string        `bson:"country,omitempty"`
	Email           string        `bson:"email,omitempty"`
	Website         string        `bson:"website,omitempty"`
	SecondaryURL    string        `bson:"secondaryUrl,omitempty"`
	Logo            string        `bson:"logo,omitempty"`
	Images          []string      `bson:"images,omitempty"`
	Industry        string        `bson:"industry,omitempty"`
	Description     string        `bson:"description,omitempty"`
	Latitude        float64       `bson:"latitude"`
	Longitude       float64       `bson:"longitude"`
	ClickCount      *int          `bson:"clickCount,omitempty"`
	MostRecentClick *time.Time    `bson:"mostRecentClick,omitempty"`
}

func (d businessDoc) toDomain() domain.Business {
	return domain.Business{
		ID:            d.ID.Hex(),
		ExternalID:    d.ExternalID,
		Source:        d.Source,
		Name:          d.Name,
		Address:       d.Address,
		City:          d.City,
		Country:       d.Country,
		Email:         d.Email,
		Website:       d.Website,
		SecondaryURL:  d.SecondaryURL,
		Logo:          d.Logo,
		Images:        d.Images,
		Industry:      d.Industry,
		Description:   d.Description,
		Location:      domain.Coordinate{Latitude: d.Latitude, Longitude: d.Longitude},
		ClickCount:    d.ClickCount,
		LastClickedAt: d.MostRecentClick,
	}
}

// Find returns businesses matching filter. Coordinate ranges are exclusive.
func (s *Store) Find(ctx context.Context, filter domain.BusinessFilter, page domain.Page) ([]domain.Business, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(sortFor(filter.Sort))
	if page.Skip > 0 {
		opts.SetSkip(int64(page.Skip))
	}
	if page.Limit > 0 {
		opts.SetLimit(int64(page.Limit))
	}

	cur, err := s.coll.Find(ctx, buildFilter(filter), opts)
	if err != nil {
		return nil, err
	}
	var docs []businessDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Business, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// CountAll returns the number of documents in the collection.
func (s *Store) CountAll(ctx context.Context) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.D{})
}

// GetByID returns the business with the given hex ObjectID.
func (s *Store) GetByID(ctx context.Context, id string) (*domain.Business, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: business %s", domain.ErrNotFound, id)
	}
	var d businessDoc
	err = s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: business %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	b := d.toDomain()
	return &b, nil
}

// GetByIDs returns the businesses with the given ids. Malformed ids are
// skipped.
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]domain.Business, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.Find(ctx, domain.BusinessFilter{IDs: ids}, domain.Page{})
}

// RecordClick increments clickCount and sets mostRecentClick atomically.
func (s *Store) RecordClick(ctx context.Context, id string, at time.Time) (*domain.Business, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: business %s", domain.ErrNotFound, id)
	}
	update := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "clickCount", Value: 1}}},
		{Key: "$set", Value: bson.D{{Key: "mostRecentClick", Value: at}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var d businessDoc
	err = s.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: oid}}, update, opts).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: business %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	b := d.toDomain()
	return &b, nil
}

func buildFilter(f domain.BusinessFilter) bson.D {
	q := bson.D{}
	if f.LatRange != nil {
		q = append(q, bson.E{Key: "latitude", Value: bson.D{
			{Key: "$gt", Value: f.LatRange.Min},
			{Key: "$lt", Value: f.LatRange.Max},
		}})
	}
	switch len(f.LongRanges) {
	case 0:
	case 1:
		q = append(q, bson.E{Key: "longitude", Value: longRange(f.LongRanges[0])})
	default:
		or := bson.A{}
		for _, r := range f.LongRanges {
			or = append(or, bson.D{{Key: "longitude", Value: longRange(r)}})
		}
		q = append(q, bson.E{Key: "$or", Value: or})
	}
	if f.NameContains != "" {
		q = append(q, bson.E{Key: "name", Value: bson.Regex{
			Pattern: regexp.QuoteMeta(f.NameContains),
			Options: "i",
		}})
	}
	if len(f.IDs) > 0 {
		oids := bson.A{}
		for _, id := range f.IDs {
			if oid, err := bson.ObjectIDFromHex(id); err == nil {
				oids = append(oids, oid)
			}
		}
		q = append(q, bson.E{Key: "_id", Value: bson.D{{Key: "$in", Value: oids}}})
	}
	if f.ClickedOnly {
		q = append(q, bson.E{Key: "clickCount", Value: bson.D{{Key: "$exists", Value: true}, {Key: "$ne", Value: nil}}})
	}
	return q
}

func longRange(r domain.Range) bson.D {
	lo, hi := "$gt", "$lt"
	if r.IncludeMin {
		lo = "$gte"
	}
	if r.IncludeMax {
		hi = "$lte"
	}
	return bson.D{{Key: lo, Value: r.Min}, {Key: hi, Value: r.Max}}
}

func sortFor(s domain.SortOrder) bson.D {
	switch s {
	case domain.SortClickCountDesc:
		return bson.D{{Key: "clickCount", Value: -1}, {Key: "_id", Value: 1}}
	case domain.SortLastClickedDesc:
		return bson.D{{Key: "mostRecentClick", Value: -1}, {Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "_id", Value: 1}}
	}
}
