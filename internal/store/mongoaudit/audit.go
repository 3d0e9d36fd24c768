// Package mongoaudit implements the batch-operation audit log (§3
// "Batch Operation", §6 persisted state layout) as an append-only
// collection in MongoDB.
//
// Grounded on the go.mongodb.org/mongo-driver dependency,
// which the AAS submodel repository used for document
// persistence; here the same driver backs a narrower, append-log-only
// collection instead of full CRUD, since batch-operation history is
// the only part of the core's state §3 describes as "chronologically
// ordered" rather than mutable-in-place.
package mongoaudit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/opencga/catalog-core/internal/catalogconfig"
	"github.com/opencga/catalog-core/internal/catalogerr"
	"github.com/opencga/catalog-core/internal/catalogmodel"
)

// Store is the append-log Metadata Adaptor companion backing
// studymeta.BatchOpStore.
type Store struct {
	collection *mongo.Collection
}

// Connect opens a mongo client per cfg and returns a Store bound to the
// batch_operations collection.
func Connect(ctx context.Context, cfg catalogconfig.MongoConfig) (*Store, func(context.Context) error, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, catalogerr.Internal(err, "connecting to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, catalogerr.Internal(err, "pinging mongo")
	}
	collection := client.Database(cfg.Database).Collection("batch_operations")
	return &Store{collection: collection}, client.Disconnect, nil
}

// New wraps an already-resolved collection, for callers that manage
// their own client lifecycle (e.g. tests sharing one client).
func New(collection *mongo.Collection) *Store {
	return &Store{collection: collection}
}

type statusHistoryEntryDoc struct {
	Status string    `bson:"status"`
	At     time.Time `bson:"at"`
}

type operationDoc struct {
	ID            string                  `bson:"_id"`
	StudyID       int64                   `bson:"studyId"`
	Operation     string                  `bson:"operation"`
	Type          string                  `bson:"type"`
	FileIDs       []int64                 `bson:"fileIds"`
	Status        string                  `bson:"status"`
	StatusHistory []statusHistoryEntryDoc `bson:"statusHistory"`
	CreatedAt     time.Time               `bson:"createdAt"`
	UpdatedAt     time.Time               `bson:"updatedAt"`
	NumProcessed  int                     `bson:"numProcessed"`
	NumErrors     int                     `bson:"numErrors"`
}

func toHistoryDocs(history []catalogmodel.StatusHistoryEntry) []statusHistoryEntryDoc {
	if len(history) == 0 {
		return nil
	}
	out := make([]statusHistoryEntryDoc, len(history))
	for i, h := range history {
		out[i] = statusHistoryEntryDoc{Status: string(h.Status), At: h.At}
	}
	return out
}

func fromHistoryDocs(history []statusHistoryEntryDoc) []catalogmodel.StatusHistoryEntry {
	if len(history) == 0 {
		return nil
	}
	out := make([]catalogmodel.StatusHistoryEntry, len(history))
	for i, h := range history {
		out[i] = catalogmodel.StatusHistoryEntry{Status: catalogmodel.Status(h.Status), At: h.At}
	}
	return out
}

func toDoc(op catalogmodel.BatchOperation) operationDoc {
	return operationDoc{
		ID:            op.ID,
		StudyID:       op.StudyID,
		Operation:     op.Operation,
		Type:          op.Type,
		FileIDs:       op.FileIDs,
		Status:        string(op.Status),
		StatusHistory: toHistoryDocs(op.StatusHistory),
		CreatedAt:     op.CreatedAt,
		UpdatedAt:     op.UpdatedAt,
		NumProcessed:  op.NumProcessed,
		NumErrors:     op.NumErrors,
	}
}

func fromDoc(d operationDoc) catalogmodel.BatchOperation {
	return catalogmodel.BatchOperation{
		ID:            d.ID,
		StudyID:       d.StudyID,
		Operation:     d.Operation,
		Type:          d.Type,
		FileIDs:       d.FileIDs,
		Status:        catalogmodel.Status(d.Status),
		StatusHistory: fromHistoryDocs(d.StatusHistory),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		NumProcessed:  d.NumProcessed,
		NumErrors:     d.NumErrors,
	}
}

// ListOperations implements studymeta.BatchOpStore.
func (s *Store) ListOperations(ctx context.Context, studyID int64) ([]catalogmodel.BatchOperation, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"studyId": studyID}, options.Find().SetSort(bson.M{"createdAt": 1}))
	if err != nil {
		return nil, catalogerr.Internal(err, "listing batch operations for study %d", studyID)
	}
	defer cursor.Close(ctx)

	var out []catalogmodel.BatchOperation
	for cursor.Next(ctx) {
		var d operationDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, catalogerr.Internal(err, "decoding batch operation")
		}
		out = append(out, fromDoc(d))
	}
	return out, cursor.Err()
}

// AppendOperation implements studymeta.BatchOpStore.
func (s *Store) AppendOperation(ctx context.Context, op catalogmodel.BatchOperation) error {
	_, err := s.collection.InsertOne(ctx, toDoc(op))
	if err != nil {
		return catalogerr.Internal(err, "appending batch operation %s", op.ID)
	}
	return nil
}

// UpdateOperation implements studymeta.BatchOpStore: updates the
// mutable scalar fields (status/timestamps/counters) in place but only
// ever pushes the newest entry of op.StatusHistory onto the document's
// history array, never replacing it wholesale — the one mutation the
// otherwise append-only log allows still leaves every prior history
// entry untouched, matching the GLOSSARY's "append-only status
// history" and §4.4 "Resume re-enters RUNNING from ERROR... reuse its
// record".
func (s *Store) UpdateOperation(ctx context.Context, op catalogmodel.BatchOperation) error {
	if len(op.StatusHistory) == 0 {
		return catalogerr.InvalidArgument("updating batch operation %s: status history is empty", op.ID)
	}
	latest := op.StatusHistory[len(op.StatusHistory)-1]

	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": op.ID}, bson.M{
		"$set": bson.M{
			"status":       string(op.Status),
			"updatedAt":    op.UpdatedAt,
			"numProcessed": op.NumProcessed,
			"numErrors":    op.NumErrors,
		},
		"$push": bson.M{
			"statusHistory": statusHistoryEntryDoc{Status: string(latest.Status), At: latest.At},
		},
	})
	if err != nil {
		return catalogerr.Internal(err, "updating batch operation %s", op.ID)
	}
	if res.MatchedCount == 0 {
		return catalogerr.NotFound("batch operation %s not found", op.ID)
	}
	return nil
}
