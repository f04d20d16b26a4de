package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"costura-backend/internal/docstore"
	"costura-backend/internal/platform/config"
)

const collectionName = "documents"

// record: 1文書 = 1レコード。_id はパス
type record struct {
	Path       string    `bson:"_id"`
	Collection string    `bson:"collection"`
	DocID      string    `bson:"docId"`
	UniqueKey  string    `bson:"uniqueKey,omitempty"` // sparse unique
	Data       bson.M    `bson:"data"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ docstore.Store = (*Store)(nil)

func Open(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := &Store{client: client, coll: client.Database(cfg.Database).Collection(collectionName)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "uniqueKey", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "collection", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

func (s *Store) Get(ctx context.Context, path string) (docstore.Snapshot, error) {
	var r record
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: path}}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.Snapshot{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("get %s: %w", path, err)
	}
	return r.snapshot(), nil
}

func (s *Store) newRecord(path string, doc map[string]any, uniqueKey string) (record, error) {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return record{}, err
	}
	data, err := toBSON(doc)
	if err != nil {
		return record{}, fmt.Errorf("%s: %w", path, err)
	}
	now := time.Now().UTC()
	return record{
		Path:       path,
		Collection: collection,
		DocID:      id,
		UniqueKey:  uniqueKey,
		Data:       data.(bson.M),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *Store) Create(ctx context.Context, path string, doc map[string]any, uniqueKey string) error {
	r, err := s.newRecord(path, doc, uniqueKey)
	if err != nil {
		return err
	}
	if _, err := s.coll.InsertOne(ctx, r); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return docstore.ErrAlreadyExists
		}
		return fmt.Errorf("create %s: %w", path, err)
	}
	return nil
}

func (s *Store) Set(ctx context.Context, path string, doc map[string]any, uniqueKey string) error {
	r, err := s.newRecord(path, doc, uniqueKey)
	if err != nil {
		return err
	}
	set := bson.D{
		{Key: "collection", Value: r.Collection},
		{Key: "docId", Value: r.DocID},
		{Key: "data", Value: r.Data},
		{Key: "updatedAt", Value: r.UpdatedAt},
	}
	update := bson.D{{Key: "$setOnInsert", Value: bson.D{{Key: "createdAt", Value: r.CreatedAt}}}}
	if uniqueKey != "" {
		set = append(set, bson.E{Key: "uniqueKey", Value: uniqueKey})
	} else {
		update = append(update, bson.E{Key: "$unset", Value: bson.D{{Key: "uniqueKey", Value: ""}}})
	}
	update = append(update, bson.E{Key: "$set", Value: set})

	_, err = s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: path}}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return docstore.ErrAlreadyExists
		}
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	set := bson.D{{Key: "updatedAt", Value: time.Now().UTC()}}
	for f, v := range fields {
		bv, err := toBSON(v)
		if err != nil {
			return fmt.Errorf("update %s: %w", path, err)
		}
		set = append(set, bson.E{Key: "data." + f, Value: bv})
	}
	return s.updateOne(ctx, path, bson.D{{Key: "$set", Value: set}})
}

func (s *Store) Increment(ctx context.Context, path string, deltas map[string]decimal.Decimal, set map[string]any) error {
	inc := bson.D{}
	for f, d := range deltas {
		dec, err := bson.ParseDecimal128(d.String())
		if err != nil {
			return fmt.Errorf("increment %s: %w", path, err)
		}
		inc = append(inc, bson.E{Key: "data." + f, Value: dec})
	}
	sets := bson.D{{Key: "updatedAt", Value: time.Now().UTC()}}
	for f, v := range set {
		bv, err := toBSON(v)
		if err != nil {
			return fmt.Errorf("increment %s: %w", path, err)
		}
		sets = append(sets, bson.E{Key: "data." + f, Value: bv})
	}
	update := bson.D{{Key: "$set", Value: sets}}
	if len(inc) > 0 {
		update = append(update, bson.E{Key: "$inc", Value: inc})
	}
	return s.updateOne(ctx, path, update)
}

func (s *Store) updateOne(ctx context.Context, path string, update bson.D) error {
	res, err := s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: path}}, update)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	if res.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

var mongoOps = map[docstore.Op]string{
	docstore.OpEq:  "$eq",
	docstore.OpGte: "$gte",
	docstore.OpLte: "$lte",
	docstore.OpGt:  "$gt",
	docstore.OpLt:  "$lt",
}

func (s *Store) Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Snapshot, error) {
	filter := bson.D{{Key: "collection", Value: collection}}
	for _, f := range q.Where {
		op, ok := mongoOps[f.Op]
		if !ok {
			return nil, fmt.Errorf("query %s: unsupported op %q", collection, f.Op)
		}
		v, err := toBSON(f.Value)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", collection, err)
		}
		filter = append(filter, bson.E{Key: "data." + f.Field, Value: bson.D{{Key: op, Value: v}}})
	}

	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: "data." + q.OrderBy, Value: dir}, {Key: "_id", Value: 1}})
	} else {
		opts.SetSort(bson.D{{Key: "_id", Value: 1}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var out []docstore.Snapshot
	for cur.Next(ctx) {
		var r record
		if err := cur.Decode(&r); err != nil {
			return nil, fmt.Errorf("query %s: %w", collection, err)
		}
		out = append(out, r.snapshot())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return out, nil
}

func (s *Store) List(ctx context.Context, collection string) ([]docstore.Snapshot, error) {
	return s.Query(ctx, collection, docstore.Query{})
}

func (s *Store) Delete(ctx context.Context, path string) error {
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: path}})
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	if res.DeletedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (r record) snapshot() docstore.Snapshot {
	data, _ := normalize(r.Data).(map[string]any)
	if data == nil {
		data = map[string]any{}
	}
	return docstore.Snapshot{ID: r.DocID, Path: r.Path, Data: data}
}

// toBSON: json.Number / decimal は Decimal128 に変換（$inc と桁を保つため）
func toBSON(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		m := bson.M{}
		for k, e := range x {
			bv, err := toBSON(e)
			if err != nil {
				return nil, err
			}
			m[k] = bv
		}
		return m, nil
	case []any:
		a := make(bson.A, 0, len(x))
		for _, e := range x {
			bv, err := toBSON(e)
			if err != nil {
				return nil, err
			}
			a = append(a, bv)
		}
		return a, nil
	case json.Number:
		return bson.ParseDecimal128(x.String())
	case decimal.Decimal:
		return bson.ParseDecimal128(x.String())
	default:
		return v, nil
	}
}

// normalize: BSON の値を docstore の表現（数値は json.Number）に揃える
func normalize(v any) any {
	switch x := v.(type) {
	case bson.M:
		return normalize(map[string]any(x))
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = normalize(e)
		}
		return m
	case bson.D:
		m := make(map[string]any, len(x))
		for _, e := range x {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case bson.A:
		return normalize([]any(x))
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case bson.Decimal128:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return x.String()
		}
		return json.Number(d.String())
	case int32:
		return json.Number(fmt.Sprint(x))
	case int64:
		return json.Number(fmt.Sprint(x))
	case float64:
		return json.Number(decimal.NewFromFloat(x).String())
	case bson.DateTime:
		return x.Time().UTC().Format(time.RFC3339Nano)
	case bson.ObjectID:
		return x.Hex()
	default:
		return v
	}
}
