package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 10 * time.Second

type MongoDatabase struct {
	client   *mongo.Client
	database string
}

func NewMongoDatabase(uri, database string) (*MongoDatabase, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "pinging mongodb")
	}
	return &MongoDatabase{client: client, database: database}, nil
}

func (db *MongoDatabase) GetObject(collectionName, key string, object any) error {
	collection := db.client.Database(db.database).Collection(collectionName)

	var result bson.M

	err := collection.FindOne(context.Background(), bson.D{{Key: "_id", Value: key}}).Decode(&result)
	if err == mongo.ErrNoDocuments {
		return ErrKeyNotFound
	} else if err != nil {
		return errors.Wrapf(err, "finding %s/%s", collectionName, key)
	}
	if value, ok := result["value"]; ok {
		bsonType, data, err := bson.MarshalValue(value)
		if err != nil {
			return err
		}
		rawData := bson.RawValue{Type: bsonType, Value: data}
		if err := rawData.Unmarshal(object); err != nil {
			return errors.Wrapf(err, "decoding %s/%s", collectionName, key)
		}
	}
	return nil
}

func (db *MongoDatabase) SaveObject(collectionName, key string, object any) error {
	collection := db.client.Database(db.database).Collection(collectionName)

	result := struct {
		Value interface{}
	}{
		Value: object,
	}

	_, err := collection.ReplaceOne(context.Background(), bson.D{{Key: "_id", Value: key}}, result, options.Replace().SetUpsert(true))
	return errors.Wrapf(err, "saving %s/%s", collectionName, key)
}

func (db *MongoDatabase) Close() error {
	return db.client.Disconnect(context.Background())
}
