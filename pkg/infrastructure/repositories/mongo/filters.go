package mongo

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vsinha/podsync/pkg/domain/repositories"
)

// ItemFilterDocument translates an item filter into a query document
func ItemFilterDocument(filter repositories.ItemFilter) bson.D {
	doc := bson.D{}
	if filter.StockCode != "" {
		doc = append(doc, bson.E{Key: "stockCode", Value: filter.StockCode})
	} else if filter.StockCodePrefix != "" {
		doc = append(doc, bson.E{Key: "stockCode", Value: prefixRegex(filter.StockCodePrefix)})
	}
	if filter.Status != "" {
		doc = append(doc, bson.E{Key: "status", Value: string(filter.Status)})
	}
	if filter.UBinID != "" {
		doc = append(doc, bson.E{Key: "uBinId", Value: filter.UBinID})
	} else if filter.UBinIDPrefix != "" {
		doc = append(doc, bson.E{Key: "uBinId", Value: prefixRegex(filter.UBinIDPrefix)})
	}
	return doc
}

// LocationsFilterDocument is ItemFilterDocument restricted to a set of location keys
func LocationsFilterDocument(uBinIDs []string, filter repositories.ItemFilter) bson.D {
	doc := bson.D{{Key: "uBinId", Value: bson.D{{Key: "$in", Value: uBinIDs}}}}
	for _, e := range ItemFilterDocument(filter) {
		if e.Key == "uBinId" {
			// both constraints must hold on the same field
			doc = bson.D{{Key: "$and", Value: bson.A{doc, bson.D{e}}}}
			continue
		}
		doc = append(doc, e)
	}
	return doc
}

// LocateBinPipeline unwinds faces and bins, keeps the bins carrying uBinID in
// barcode/face/bin order, and projects the minimal location descriptor
func LocateBinPipeline(uBinID string, limit int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "faces.bins.uBinId", Value: uBinID}}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$faces"},
			{Key: "includeArrayIndex", Value: "faceIndex"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$faces.bins"},
			{Key: "includeArrayIndex", Value: "binIndex"},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "faces.bins.uBinId", Value: uBinID}}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "podBarcode", Value: 1},
			{Key: "faceIndex", Value: 1},
			{Key: "binIndex", Value: 1},
		}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "podBarcode", Value: 1},
			{Key: "face", Value: "$faces.face"},
			{Key: "binId", Value: "$faces.bins.binId"},
			{Key: "uBinId", Value: "$faces.bins.uBinId"},
			{Key: "binItemCount", Value: "$faces.bins.binItemCount"},
		}}},
	}
}

func prefixRegex(prefix string) bson.D {
	return bson.D{{Key: "$regex", Value: "^" + regexp.QuoteMeta(prefix)}}
}
