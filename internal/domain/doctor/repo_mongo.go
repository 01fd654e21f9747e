package doctor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/labdesk/labdesk/internal/platform/mongostore"
)

type doctorDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Name           string             `bson:"name"`
	Specialization *string            `bson:"specialization,omitempty"`
	Phone          *string            `bson:"phone,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt"`
}

func (d doctorDoc) toDoctor() *Doctor {
	return &Doctor{
		ID:             d.ID.Hex(),
		Name:           d.Name,
		Specialization: d.Specialization,
		Phone:          d.Phone,
		CreatedAt:      d.CreatedAt,
	}
}

type repoMongo struct {
	coll *mongo.Collection
}

func NewRepoMongo(db *mongo.Database) Repository {
	return &repoMongo{coll: db.Collection(mongostore.CollDoctors)}
}

func (r *repoMongo) List(ctx context.Context) ([]*Doctor, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer cur.Close(ctx)

	var docs []doctorDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode doctors: %w", err)
	}
	out := make([]*Doctor, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDoctor())
	}
	return out, nil
}

func (r *repoMongo) Get(ctx context.Context, id string) (*Doctor, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var d doctorDoc
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor %s: %w", id, err)
	}
	return d.toDoctor(), nil
}

func (r *repoMongo) Create(ctx context.Context, d *Doctor) error {
	doc := doctorDoc{
		ID:             primitive.NewObjectID(),
		Name:           d.Name,
		Specialization: d.Specialization,
		Phone:          d.Phone,
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("create doctor: %w", err)
	}
	d.ID = doc.ID.Hex()
	d.CreatedAt = doc.CreatedAt
	return nil
}
