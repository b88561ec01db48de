package graphql

import (
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/mnohosten/pagecache/pkg/storage"
)

// Resolver holds the buffer pool manager GraphQL queries read from.
type Resolver struct {
	bpm *storage.BufferPoolManager
}

// NewResolver creates a resolver bound to bpm.
func NewResolver(bpm *storage.BufferPoolManager) *Resolver {
	return &Resolver{bpm: bpm}
}

func frameMap(f storage.FrameSnapshot) map[string]interface{} {
	return map[string]interface{}{
		"frameNo":  int(f.FrameNo),
		"file":     f.File,
		"pageNo":   int(f.PageNo),
		"pinCount": int(f.PinCnt),
		"dirty":    f.Dirty,
		"valid":    f.Valid,
		"refBit":   f.RefBit,
	}
}

// Frames resolves the frames query: every frame's descriptor state.
func (r *Resolver) Frames(p graphql.ResolveParams) (interface{}, error) {
	frames, _ := r.bpm.DumpFrames()
	out := make([]map[string]interface{}, len(frames))
	for i, f := range frames {
		out[i] = frameMap(f)
	}
	return out, nil
}

// Frame resolves the frame query: a single frame's descriptor state.
func (r *Resolver) Frame(p graphql.ResolveParams) (interface{}, error) {
	frameNo, ok := p.Args["frameNo"].(int)
	if !ok {
		return nil, fmt.Errorf("frameNo is required")
	}

	frames, _ := r.bpm.DumpFrames()
	if frameNo < 0 || frameNo >= len(frames) {
		return nil, fmt.Errorf("frame %d out of range [0, %d)", frameNo, len(frames))
	}

	return frameMap(frames[frameNo]), nil
}

// Stats resolves the stats query: pool size and valid-frame count.
func (r *Resolver) Stats(p graphql.ResolveParams) (interface{}, error) {
	_, validFrames := r.bpm.DumpFrames()
	return map[string]interface{}{
		"poolSize":    r.bpm.Size(),
		"validFrames": validFrames,
	}, nil
}
