package mongodb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDocumentsToTablePreservesFieldOrder(t *testing.T) {
	docs := []bson.D{
		{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "id", Value: int32(7)}, {Key: "price", Value: "$1,200.00"}},
		{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "id", Value: int64(8)}, {Key: "amenities", Value: primitive.A{"Wifi", "Kitchen"}}},
	}

	tbl := DocumentsToTable("listings", docs)
	require.Equal(t, "listings", tbl.Name)
	require.Equal(t, []string{"_id", "id", "price", "amenities"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)
	require.Equal(t, int64(7), tbl.Rows[0]["id"])
	require.Equal(t, int64(8), tbl.Rows[1]["id"])
	require.Equal(t, []any{"Wifi", "Kitchen"}, tbl.Rows[1]["amenities"])
	require.Len(t, tbl.Rows[0]["_id"], 24)
}

func TestConvertValue(t *testing.T) {
	when := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	dec, err := primitive.ParseDecimal128("1200.50")
	require.NoError(t, err)

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"null", primitive.Null{}, nil},
		{"int32", int32(3), int64(3)},
		{"float64", 2.5, 2.5},
		{"string", "x", "x"},
		{"datetime", primitive.NewDateTimeFromTime(when), when},
		{"decimal", dec, "1200.50"},
		{"nested doc", primitive.D{{Key: "city", Value: "CDMX"}, {Key: "n", Value: int32(1)}}, map[string]any{"city": "CDMX", "n": int64(1)}},
		{"nested map", primitive.M{"a": int32(2)}, map[string]any{"a": int64(2)}},
		{"array", primitive.A{int32(1), "b"}, []any{int64(1), "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, convertValue(tt.in))
		})
	}
}
