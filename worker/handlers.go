// handlers.go - Anfrage-Handler des Worker-Actors
//
// Jeder Handler liest nur aus der geladenen Datei. Die Datei ist nach dem
// Laden unveraenderlich, daher brauchen parallele Handler keine Sperren.

package worker

import (
	"context"
	"log/slog"

	"github.com/lora-inspector/inspector/engine"
	"github.com/lora-inspector/inspector/envconfig"
	"github.com/lora-inspector/inspector/keys"
	"github.com/lora-inspector/inspector/lora"
)

type handlerFunc func(ctx context.Context, a *Actor, f *lora.File, req Request) (any, error)

var handlers = map[string]handlerFunc{
	TypeMetadata: func(_ context.Context, _ *Actor, f *lora.File, _ Request) (any, error) {
		return metadataPayload(f), nil
	},
	TypeNetworkModule: func(_ context.Context, _ *Actor, f *lora.File, _ Request) (any, error) {
		return string(f.Metadata().NetworkModule()), nil
	},
	TypeNetworkType: func(_ context.Context, _ *Actor, f *lora.File, _ Request) (any, error) {
		return string(f.Metadata().NetworkType()), nil
	},
	TypeNetworkArgs: func(_ context.Context, _ *Actor, f *lora.File, _ Request) (any, error) {
		return f.Metadata().NetworkArgs(), nil
	},
	TypeKeys: func(_ context.Context, _ *Actor, f *lora.File, _ Request) (any, error) {
		return f.Keys(), nil
	},
	TypeTextEncoderKeys: func(_ context.Context, _ *Actor, f *lora.File, _ Request) (any, error) {
		return f.TextEncoderKeys(), nil
	},
	TypeUNetKeys: func(_ context.Context, _ *Actor, f *lora.File, _ Request) (any, error) {
		return f.UNetKeys(), nil
	},
	TypeWeightKeys: func(_ context.Context, _ *Actor, f *lora.File, _ Request) (any, error) {
		return f.WeightKeys(), nil
	},
	TypeAlphaKeys: func(_ context.Context, _ *Actor, f *lora.File, _ Request) (any, error) {
		return f.AlphaKeys(), nil
	},
	TypeBaseNames: func(_ context.Context, _ *Actor, f *lora.File, _ Request) (any, error) {
		return f.BaseNames(), nil
	},
	TypeDims: func(_ context.Context, _ *Actor, f *lora.File, _ Request) (any, error) {
		return f.Dims(), nil
	},
	TypeAlphas: func(_ context.Context, _ *Actor, f *lora.File, _ Request) (any, error) {
		return f.Alphas(), nil
	},
	TypePrecision: func(_ context.Context, _ *Actor, f *lora.File, _ Request) (any, error) {
		return f.Precision(), nil
	},
	TypeWeightDecomposition: func(_ context.Context, _ *Actor, f *lora.File, _ Request) (any, error) {
		return f.Metadata().WeightDecomposition(), nil
	},
	TypeRankStabilized: func(_ context.Context, _ *Actor, f *lora.File, _ Request) (any, error) {
		return f.Metadata().RankStabilized(), nil
	},
	TypeNorms: handleNorms,
	TypeL2Norm: handleL2Norm,
}

func metadataPayload(f *lora.File) MetadataPayload {
	return MetadataPayload{
		Name:       f.Name(),
		Digest:     f.Digest(),
		Size:       f.Size(),
		NumTensors: len(f.Keys()),
		Metadata:   f.Metadata(),
	}
}

func handleNorms(_ context.Context, _ *Actor, f *lora.File, req Request) (any, error) {
	metrics, err := engine.ParseMetrics(req.Metrics)
	if err != nil {
		return nil, err
	}

	norms, err := f.Norms(req.BaseName, metrics...)
	if err != nil {
		return nil, err
	}
	return NormsPayload{BaseName: req.BaseName, Norms: norms}, nil
}

type blockAcc struct {
	sum   float64
	count int
	meta  BlockMeta
}

// handleL2Norm berechnet die L2-Norm jedes Base-Namens und mittelt pro Block.
// Fortschritt geht als l2_norms_progress an den Hub, abgeschlossen durch den Sentinel.
func handleL2Norm(ctx context.Context, a *Actor, f *lora.File, _ Request) (any, error) {
	defer a.emit(Response{Type: Finished(TypeL2NormsProgress)})

	bases := f.BaseNames()
	payload := L2NormPayload{Norms: map[string]map[string]BlockNorm{}}

	parsed := make(map[string]keys.ParsedKey, len(bases))
	var recognized []string
	for _, base := range bases {
		pk, err := keys.Classify(base)
		if err != nil {
			payload.Unrecognized = append(payload.Unrecognized, base)
			continue
		}
		parsed[base] = pk
		recognized = append(recognized, base)
	}

	if len(payload.Unrecognized) > 0 {
		slog.Warn("unrecognized keys", "worker", a.name, "count", len(payload.Unrecognized), "first", payload.Unrecognized[0])
	}

	// Reihenfolge der Bloecke legt der Empfaenger fest (server.blockRows)
	blocks := map[keys.Family]map[string]*blockAcc{}
	current := 0
	err := f.Scan(ctx, recognized, int(envconfig.MaxConcurrency()), func(base string, norms map[string]float64, err error) error {
		current++
		a.emit(Response{
			Type:     TypeL2NormsProgress,
			BaseName: base,
			Payload:  Progress{BaseName: base, CurrentCount: current, TotalCount: len(recognized)},
		})

		l2, ok := norms[string(engine.MetricL2Norm)]
		if err != nil || !ok {
			payload.Failed = append(payload.Failed, base)
			return nil
		}

		pk := parsed[base]
		byName, ok := blocks[pk.Family]
		if !ok {
			byName = map[string]*blockAcc{}
			blocks[pk.Family] = byName
		}

		acc, ok := byName[pk.CanonicalName]
		if !ok {
			acc = &blockAcc{meta: blockMeta(pk)}
			byName[pk.CanonicalName] = acc
		}
		acc.sum += l2
		acc.count++
		return nil
	}, engine.MetricL2Norm)
	if err != nil {
		return nil, err
	}

	for family, byName := range blocks {
		out := make(map[string]BlockNorm, len(byName))
		for name, acc := range byName {
			out[name] = BlockNorm{Mean: acc.sum / float64(acc.count), Count: acc.count, Metadata: acc.meta}
		}
		payload.Norms[family.String()] = out
	}

	return payload, nil
}

func blockMeta(pk keys.ParsedKey) BlockMeta {
	typ := pk.SubType
	if typ == "" {
		typ = pk.BlockType
	}

	return BlockMeta{
		Type:       typ,
		Family:     pk.Family,
		BlockType:  pk.BlockType,
		BlockID:    pk.BlockID,
		ChartIndex: pk.ChartIndex(),
	}
}
