package graphql

import (
	"github.com/graphql-go/graphql"
	"github.com/mnohosten/pagecache/pkg/storage"
)

// Schema builds the read-only GraphQL schema exposing the buffer pool
// manager's own frame table: a live view of pin counts, dirty bits, and
// occupancy, the same state the admin HTTP surface's /_frames endpoint and
// the WebSocket frame-watch feed already expose.
func Schema(bpm *storage.BufferPoolManager) (graphql.Schema, error) {
	frameType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "Frame",
		Description: "A single buffer pool frame's observable state",
		Fields: graphql.Fields{
			"frameNo": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Int),
				Description: "Frame index in [0, poolSize)",
			},
			"file": &graphql.Field{
				Type:        graphql.String,
				Description: "Filename of the file occupying this frame, empty if invalid",
			},
			"pageNo": &graphql.Field{
				Type:        graphql.Int,
				Description: "Page id resident in this frame",
			},
			"pinCount": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Int),
				Description: "Outstanding pins on this frame",
			},
			"dirty": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Boolean),
				Description: "Whether this frame has unflushed modifications",
			},
			"valid": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Boolean),
				Description: "Whether this frame currently holds a resident page",
			},
			"refBit": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Boolean),
				Description: "CLOCK reference bit",
			},
		},
	})

	statsType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "Stats",
		Description: "Buffer pool occupancy summary",
		Fields: graphql.Fields{
			"poolSize": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Int),
				Description: "Total number of frames in the pool",
			},
			"validFrames": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Int),
				Description: "Number of frames currently holding a resident page",
			},
		},
	})

	resolver := NewResolver(bpm)

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"frames": &graphql.Field{
				Type:        graphql.NewList(frameType),
				Description: "Every frame's current descriptor state",
				Resolve:     resolver.Frames,
			},
			"frame": &graphql.Field{
				Type:        frameType,
				Description: "A single frame's current descriptor state",
				Args: graphql.FieldConfigArgument{
					"frameNo": &graphql.ArgumentConfig{
						Type:        graphql.NewNonNull(graphql.Int),
						Description: "Frame index to inspect",
					},
				},
				Resolve: resolver.Frame,
			},
			"stats": &graphql.Field{
				Type:        statsType,
				Description: "Pool-wide occupancy summary",
				Resolve:     resolver.Stats,
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}
