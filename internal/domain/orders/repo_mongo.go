package orders

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/labdesk/labdesk/internal/platform/mongostore"
)

type orderDoc struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty"`
	SerialNo     string               `bson:"serialNo,omitempty"`
	Name         string               `bson:"name"`
	Age          *int                 `bson:"age,omitempty"`
	Gender       *string              `bson:"gender,omitempty"`
	Phone        *string              `bson:"phone,omitempty"`
	ReferredBy   string               `bson:"referredBy"`
	Category     string               `bson:"category"`
	Subcategory  string               `bson:"subcategory"`
	PaymentMode  string               `bson:"paymentMode"`
	TotalAmount  primitive.Decimal128 `bson:"totalAmount"`
	Discount     primitive.Decimal128 `bson:"discount"`
	FinalPayment primitive.Decimal128 `bson:"finalPayment"`
	Remarks      *string              `bson:"remarks,omitempty"`
	CreatedAt    time.Time            `bson:"createdAt,omitempty"`
	UpdatedAt    time.Time            `bson:"updatedAt,omitempty"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(d.String())
}

func fromDecimal128(d primitive.Decimal128) (decimal.Decimal, error) {
	return decimal.NewFromString(d.String())
}

func toOrderDoc(o *Order) (orderDoc, error) {
	doc := orderDoc{
		SerialNo:    o.SerialNo,
		Name:        o.Name,
		Age:         o.Age,
		Gender:      o.Gender,
		Phone:       o.Phone,
		ReferredBy:  o.ReferredBy,
		Category:    o.Category,
		Subcategory: o.Subcategory,
		PaymentMode: o.PaymentMode,
		Remarks:     o.Remarks,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	if o.ID != "" {
		oid, err := primitive.ObjectIDFromHex(o.ID)
		if err != nil {
			return doc, fmt.Errorf("%w: id %q is not an object id", ErrInvalid, o.ID)
		}
		doc.ID = oid
	}
	var err error
	if doc.TotalAmount, err = toDecimal128(o.TotalAmount); err != nil {
		return doc, fmt.Errorf("totalAmount: %w", err)
	}
	if doc.Discount, err = toDecimal128(o.Discount); err != nil {
		return doc, fmt.Errorf("discount: %w", err)
	}
	if doc.FinalPayment, err = toDecimal128(o.FinalPayment); err != nil {
		return doc, fmt.Errorf("finalPayment: %w", err)
	}
	return doc, nil
}

func (d orderDoc) toOrder() (*Order, error) {
	o := &Order{
		SerialNo:    d.SerialNo,
		Name:        d.Name,
		Age:         d.Age,
		Gender:      d.Gender,
		Phone:       d.Phone,
		ReferredBy:  d.ReferredBy,
		Category:    d.Category,
		Subcategory: d.Subcategory,
		PaymentMode: d.PaymentMode,
		Remarks:     d.Remarks,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if !d.ID.IsZero() {
		o.ID = d.ID.Hex()
	}
	var err error
	if o.TotalAmount, err = fromDecimal128(d.TotalAmount); err != nil {
		return nil, fmt.Errorf("totalAmount: %w", err)
	}
	if o.Discount, err = fromDecimal128(d.Discount); err != nil {
		return nil, fmt.Errorf("discount: %w", err)
	}
	if o.FinalPayment, err = fromDecimal128(d.FinalPayment); err != nil {
		return nil, fmt.Errorf("finalPayment: %w", err)
	}
	return o, nil
}

// mongoFilter renders q as a query document.
func mongoFilter(q Query) bson.M {
	filter := bson.M{}
	if s := q.Filter.Search; s != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
		or := bson.A{
			bson.M{"name": pattern},
			bson.M{"serialNo": pattern},
		}
		if len(q.DoctorIDs) > 0 {
			or = append(or, bson.M{"referredBy": bson.M{"$in": q.DoctorIDs}})
		}
		filter["$or"] = or
	}
	created := bson.M{}
	if q.Filter.From != nil {
		created["$gte"] = *q.Filter.From
	}
	if q.Filter.To != nil {
		created["$lte"] = *q.Filter.To
	}
	if len(created) > 0 {
		filter["createdAt"] = created
	}
	return filter
}

type orderRepoMongo struct {
	coll     *mongo.Collection
	counters *mongostore.Counters
	serial   Collection
}

// NewRepoMongo returns the order collection stored in collName.
func NewRepoMongo(db *mongo.Database, collName string, serial Collection) Repository {
	return &orderRepoMongo{
		coll:     db.Collection(collName),
		counters: mongostore.NewCounters(db),
		serial:   serial,
	}
}

func (r *orderRepoMongo) List(ctx context.Context, q Query) ([]*Order, int, error) {
	filter := mongoFilter(q)
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", r.coll.Name(), err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "serialNo", Value: -1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", r.coll.Name(), err)
	}
	defer cur.Close(ctx)

	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", r.coll.Name(), err)
	}
	out := make([]*Order, 0, len(docs))
	for _, d := range docs {
		o, err := d.toOrder()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, int(total), nil
}

func (r *orderRepoMongo) Get(ctx context.Context, id string) (*Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var d orderDoc
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", r.coll.Name(), id, err)
	}
	return d.toOrder()
}

func (r *orderRepoMongo) Create(ctx context.Context, o *Order) error {
	n, err := r.counters.Next(ctx, r.serial.Name)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	o.ID = primitive.NewObjectID().Hex()
	o.SerialNo = r.serial.FormatSerial(n)
	o.CreatedAt = now
	o.UpdatedAt = now

	doc, err := toOrderDoc(o)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("create %s: %w", r.coll.Name(), err)
	}
	return nil
}

func (r *orderRepoMongo) Update(ctx context.Context, o *Order) error {
	doc, err := toOrderDoc(o)
	if err != nil {
		return ErrNotFound
	}
	set := bson.M{
		"name":         doc.Name,
		"age":          doc.Age,
		"gender":       doc.Gender,
		"phone":        doc.Phone,
		"referredBy":   doc.ReferredBy,
		"category":     doc.Category,
		"subcategory":  doc.Subcategory,
		"paymentMode":  doc.PaymentMode,
		"totalAmount":  doc.TotalAmount,
		"discount":     doc.Discount,
		"finalPayment": doc.FinalPayment,
		"remarks":      doc.Remarks,
		"updatedAt":    time.Now().UTC(),
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated orderDoc
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": set}, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update %s %s: %w", r.coll.Name(), o.ID, err)
	}
	o.SerialNo = updated.SerialNo
	o.CreatedAt = updated.CreatedAt
	o.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r *orderRepoMongo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", r.coll.Name(), id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *orderRepoMongo) Restore(ctx context.Context, o *Order) error {
	doc, err := toOrderDoc(o)
	if err != nil {
		return err
	}
	doc.UpdatedAt = time.Now().UTC()
	_, err = r.coll.UpdateOne(ctx,
		bson.M{"_id": doc.ID},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("restore %s %s: %w", r.coll.Name(), o.ID, err)
	}
	return nil
}

// =========== Migration Journal Repository ===========

type migrationDoc struct {
	ID               string    `bson:"_id"`
	UnbilledID       string    `bson:"unbilledId"`
	UnbilledSerialNo string    `bson:"unbilledSerialNo"`
	BilledID         string    `bson:"billedId"`
	BilledSerialNo   string    `bson:"billedSerialNo"`
	Status           string    `bson:"status"`
	Snapshot         orderDoc  `bson:"snapshot"`
	Payload          orderDoc  `bson:"payload"`
	Error            string    `bson:"error"`
	Attempts         int       `bson:"attempts"`
	CreatedAt        time.Time `bson:"createdAt"`
	UpdatedAt        time.Time `bson:"updatedAt"`
}

func (d migrationDoc) toMigration() (*Migration, error) {
	snapshot, err := d.Snapshot.toOrder()
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	payload, err := d.Payload.toOrder()
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &Migration{
		ID:               d.ID,
		UnbilledID:       d.UnbilledID,
		UnbilledSerialNo: d.UnbilledSerialNo,
		BilledID:         d.BilledID,
		BilledSerialNo:   d.BilledSerialNo,
		Status:           d.Status,
		Snapshot:         snapshot,
		Payload:          payload,
		Error:            d.Error,
		Attempts:         d.Attempts,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}, nil
}

type journalRepoMongo struct {
	coll *mongo.Collection
}

func NewJournalRepoMongo(db *mongo.Database) JournalRepository {
	return &journalRepoMongo{coll: db.Collection(mongostore.CollMigrations)}
}

func (r *journalRepoMongo) Create(ctx context.Context, m *Migration) error {
	snapshot, err := toOrderDoc(m.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	payload, err := toOrderDoc(m.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	doc := migrationDoc{
		ID:               m.ID,
		UnbilledID:       m.UnbilledID,
		UnbilledSerialNo: m.UnbilledSerialNo,
		BilledID:         m.BilledID,
		BilledSerialNo:   m.BilledSerialNo,
		Status:           m.Status,
		Snapshot:         snapshot,
		Payload:          payload,
		Error:            m.Error,
		Attempts:         m.Attempts,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("create migration: %w", err)
	}
	return nil
}

func (r *journalRepoMongo) Update(ctx context.Context, m *Migration) error {
	m.UpdatedAt = time.Now().UTC()
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": m.ID}, bson.M{"$set": bson.M{
		"billedId":       m.BilledID,
		"billedSerialNo": m.BilledSerialNo,
		"status":         m.Status,
		"error":          m.Error,
		"attempts":       m.Attempts,
		"updatedAt":      m.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("update migration %s: %w", m.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrMigrationNotFound
	}
	return nil
}

func (r *journalRepoMongo) Transition(ctx context.Context, id, from, to string) (bool, error) {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id, "status": from}, bson.M{"$set": bson.M{
		"status":    to,
		"updatedAt": time.Now().UTC(),
	}})
	if err != nil {
		return false, fmt.Errorf("transition migration %s: %w", id, err)
	}
	return res.MatchedCount == 1, nil
}

func (r *journalRepoMongo) Get(ctx context.Context, id string) (*Migration, error) {
	var d migrationDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrMigrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get migration %s: %w", id, err)
	}
	return d.toMigration()
}

func (r *journalRepoMongo) List(ctx context.Context, status string, limit, offset int) ([]*Migration, int, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count migrations: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list migrations: %w", err)
	}
	defer cur.Close(ctx)

	var docs []migrationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode migrations: %w", err)
	}
	out := make([]*Migration, 0, len(docs))
	for _, d := range docs {
		m, err := d.toMigration()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, int(total), nil
}
