package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// cartDocument holds the whole collection of one identity, so every write,
// including the batch delete, is a single-document atomic update.
type cartDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"user_id"`
	Items     []itemDocument     `bson:"items"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

type itemDocument struct {
	ProductID int64                `bson:"product_id"`
	Title     string               `bson:"title"`
	Price     primitive.Decimal128 `bson:"price"`
	Image     string               `bson:"image"`
	Quantity  int                  `bson:"quantity"`
	AddedAt   time.Time            `bson:"added_at"`
}

type mongoRepository struct {
	collection *mongo.Collection
	feed       ChangeFeed
	logger     *slog.Logger
}

func NewMongoRepository(db *mongo.Database, feed ChangeFeed, logger *slog.Logger) CartStore {
	return &mongoRepository{
		collection: db.Collection("carts"),
		feed:       feed,
		logger:     logger,
	}
}

func (m *mongoRepository) Get(ctx context.Context, uid string, productID int64) (*domain.LineItem, error) {
	items, err := m.List(ctx, uid)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.ProductID == productID {
			return &item, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *mongoRepository) Set(ctx context.Context, uid string, item domain.LineItem) error {
	doc, err := toItemDocument(item)
	if err != nil {
		return err
	}

	replaced, err := m.replaceItem(ctx, uid, doc)
	if err != nil {
		return err
	}
	if !replaced {
		err = m.pushItem(ctx, uid, doc)
		if mongo.IsDuplicateKeyError(err) {
			// another writer created the cart document first
			replaced, err = m.replaceItem(ctx, uid, doc)
			if err == nil && !replaced {
				err = m.pushItem(ctx, uid, doc)
			}
		}
		if err != nil {
			return err
		}
	}

	m.publish(ctx, uid)
	return nil
}

func (m *mongoRepository) replaceItem(ctx context.Context, uid string, doc itemDocument) (bool, error) {
	filter := bson.M{
		"user_id":          uid,
		"items.product_id": doc.ProductID,
	}
	update := bson.M{
		"$set": bson.M{
			"items.$[elem]": doc,
			"updated_at":    time.Now(),
		},
	}
	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.product_id": doc.ProductID},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return false, fmt.Errorf("failed to overwrite item: %w", err)
	}
	return result.MatchedCount > 0, nil
}

func (m *mongoRepository) pushItem(ctx context.Context, uid string, doc itemDocument) error {
	now := time.Now()
	filter := bson.M{
		"user_id":          uid,
		"items.product_id": bson.M{"$ne": doc.ProductID},
	}
	update := bson.M{
		"$push":        bson.M{"items": doc},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}

	_, err := m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to add new item: %w", err)
	}
	return nil
}

func (m *mongoRepository) UpdateQuantity(ctx context.Context, uid string, productID int64, quantity int) error {
	filter := bson.M{
		"user_id":          uid,
		"items.product_id": productID,
	}
	update := bson.M{
		"$set": bson.M{
			"items.$[elem].quantity": quantity,
			"updated_at":             time.Now(),
		},
	}
	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.product_id": productID},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to update item quantity: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrRecordNotFound
	}

	m.publish(ctx, uid)
	return nil
}

func (m *mongoRepository) Delete(ctx context.Context, uid string, productID int64) error {
	filter := bson.M{"user_id": uid}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"product_id": productID},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	if result.MatchedCount > 0 {
		m.publish(ctx, uid)
	}
	return nil
}

func (m *mongoRepository) List(ctx context.Context, uid string) ([]domain.LineItem, error) {
	var cart cartDocument
	err := m.collection.FindOne(ctx, bson.M{"user_id": uid}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return []domain.LineItem{}, nil
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	items := make([]domain.LineItem, 0, len(cart.Items))
	for _, doc := range cart.Items {
		item, err := fromItemDocument(doc)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (m *mongoRepository) BatchDelete(ctx context.Context, uid string, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}

	filter := bson.M{"user_id": uid}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"product_id": bson.M{"$in": productIDs}},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	if _, err := m.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to batch delete items: %w", err)
	}

	m.publish(ctx, uid)
	return nil
}

// Subscribe listens on the change feed and re-reads the cart document on every
// signal. The first snapshot is read right after the feed subscription is
// confirmed.
func (m *mongoRepository) Subscribe(ctx context.Context, uid string) (Subscription, error) {
	listener, err := m.feed.Listen(ctx, uid)
	if err != nil {
		return nil, err
	}

	readCtx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	stream := newSnapshotStream(func() {
		cancel()
		listener.Close()
		<-finished
	})

	go func() {
		defer close(finished)
		m.emit(readCtx, uid, stream)
		for {
			select {
			case <-stream.done:
				return
			case _, ok := <-listener.Changes():
				if !ok {
					m.logger.Warn("cart change feed dropped", slog.String("uid", uid))
					go stream.Close()
					return
				}
				m.emit(readCtx, uid, stream)
			}
		}
	}()

	return stream, nil
}

func (m *mongoRepository) emit(ctx context.Context, uid string, stream *snapshotStream) {
	items, err := m.List(ctx, uid)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Error("failed to read cart snapshot", slog.String("uid", uid), slog.Any("error", err))
		}
		return
	}
	stream.deliver(items)
}

func (m *mongoRepository) publish(ctx context.Context, uid string) {
	if err := m.feed.Publish(ctx, uid); err != nil {
		m.logger.Error("failed to publish cart change", slog.String("uid", uid), slog.Any("error", err))
	}
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func toItemDocument(item domain.LineItem) (itemDocument, error) {
	price, err := primitive.ParseDecimal128(item.Price.String())
	if err != nil {
		return itemDocument{}, fmt.Errorf("invalid price %s: %w", item.Price, err)
	}
	return itemDocument{
		ProductID: item.ProductID,
		Title:     item.Title,
		Price:     price,
		Image:     item.Image,
		Quantity:  item.Quantity,
		AddedAt:   time.Now(),
	}, nil
}

func fromItemDocument(doc itemDocument) (domain.LineItem, error) {
	price, err := decimal.NewFromString(doc.Price.String())
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("invalid stored price for product %d: %w", doc.ProductID, err)
	}
	return domain.LineItem{
		ProductID: doc.ProductID,
		Title:     doc.Title,
		Price:     price,
		Image:     doc.Image,
		Quantity:  doc.Quantity,
	}, nil
}
