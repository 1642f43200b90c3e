package metadata

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkModule(t *testing.T) {
	cases := map[string]Module{
		"networks.lora":        ModuleKohyaLoRA,
		"networks.lora_flux":   ModuleKohyaLoRAFlux,
		"networks.lora_lumina": ModuleKohyaLoRALumina,
		"lycoris.kohya":        ModuleLycoris,
		"something.else":       ModuleNone,
	}

	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			m := Parse(map[string]string{KeyNetworkModule: in})
			if got := m.NetworkModule(); got != want {
				t.Errorf("NetworkModule() = %q, erwartet %q", got, want)
			}
		})
	}

	if got := Parse(nil).NetworkModule(); got != ModuleNone {
		t.Errorf("Erwartete %q ohne Modul, bekommen %q", ModuleNone, got)
	}
}

func TestNetworkType(t *testing.T) {
	cases := []struct {
		name   string
		module string
		args   string
		want   Type
	}{
		{"kohya lora", "networks.lora", "", TypeLoRA},
		{"kohya c3lier", "networks.lora", `{"conv_dim": "4", "conv_alpha": "1"}`, TypeLoRAC3Lier},
		{"lycoris without args", "lycoris.kohya", "", TypeLoRA},
		{"lycoris loha", "lycoris.kohya", `{"algo": "loha"}`, TypeLoHa},
		{"lycoris lokr", "lycoris.kohya", `{"algo": "lokr", "factor": "8"}`, TypeLoKr},
		{"lycoris diag-oft", "lycoris.kohya", `{"algo": "diag-oft"}`, TypeDiagOFT},
		{"lycoris unknown", "lycoris.kohya", `{"algo": "ia3"}`, TypeUnknown},
		{"flux", "networks.lora_flux", "", TypeLoRA},
		{"lora_fa", "networks.lora_fa", "", TypeLoRAFA},
		{"dylora", "networks.dylora", "", TypeDyLoRA},
		{"oft", "networks.oft", "", TypeOFT},
		{"none", "", "", TypeUnknown},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			raw := map[string]string{}
			if tt.module != "" {
				raw[KeyNetworkModule] = tt.module
			}
			if tt.args != "" {
				raw[KeyNetworkArgs] = tt.args
			}

			if got := Parse(raw).NetworkType(); got != tt.want {
				t.Errorf("NetworkType() = %q, erwartet %q", got, tt.want)
			}
		})
	}
}

func TestNetworkArgsLoose(t *testing.T) {
	m := Parse(map[string]string{
		KeyNetworkArgs: `{"conv_dim": "8", "conv_alpha": 4, "dropout": "0.1", "block_dims": "2,4, 4,8", "block_alphas": [1, "2"], "dora_wd": "True", "use_cp": false, "down_lr_weight": "sine+.5"}`,
	})

	args := m.NetworkArgs()
	require.NotNil(t, args)
	require.NotNil(t, args.ConvDim)
	assert.Equal(t, LooseInt(8), *args.ConvDim)
	assert.Equal(t, LooseFloat(4), *args.ConvAlpha)
	assert.InDelta(t, 0.1, float64(*args.Dropout), 1e-9)
	assert.Equal(t, LooseInts{2, 4, 4, 8}, args.BlockDims)
	assert.Equal(t, LooseFloats{1, 2}, args.BlockAlphas)
	assert.Equal(t, LooseString("sine+.5"), args.DownLRWeight)
	assert.True(t, flag(args.DoRAWD))
	assert.False(t, flag(args.UseCP))
	assert.Equal(t, "DoRA", m.WeightDecomposition())
}

func TestNetworkArgsMalformed(t *testing.T) {
	m := Parse(map[string]string{
		KeyNetworkModule: "networks.lora",
		KeyNetworkArgs:   `{"conv_dim": `,
	})

	args := m.NetworkArgs()
	require.NotNil(t, args, "Erwartete leere Argumente statt nil")
	assert.Nil(t, args.ConvDim)
	assert.Equal(t, TypeLoRA, m.NetworkType())
	assert.Empty(t, m.WeightDecomposition())
}

func TestRankStabilized(t *testing.T) {
	for _, args := range []string{`{"rs_lora": "True"}`, `{"rank_stabilized": true}`} {
		if !Parse(map[string]string{KeyNetworkArgs: args}).RankStabilized() {
			t.Errorf("Erwartete rank stabilized fuer %s", args)
		}
	}

	if Parse(map[string]string{KeyNetworkArgs: `{"rs_lora": "False"}`}).RankStabilized() {
		t.Error("Unerwartet rank stabilized")
	}
}

func TestDatasets(t *testing.T) {
	m := Parse(map[string]string{
		KeyDatasetDirs:   `{"10_cat": {"n_repeats": 10, "img_count": 20}}`,
		KeyTagFrequency:  `{"10_cat": {"cat": 20, "sitting": 4}, "5_dog": {"sitting": 3}}`,
		KeyDatasets:      `[{"is_dreambooth": true, "batch_size_per_device": 2, "resolution": [512, 512], "enable_bucket": true, "min_bucket_reso": 256, "max_bucket_reso": 1024, "subsets": [{"image_dir": "10_cat", "num_repeats": 10, "img_count": 20}]}]`,
		KeyNetworkModule: "networks.lora",
	})

	assert.Equal(t, map[string]DatasetDir{"10_cat": {Repeats: 10, ImgCount: 20}}, m.DatasetDirs())

	ds := m.Datasets()
	require.Len(t, ds, 1)
	assert.Equal(t, 2, ds[0].BatchSizePerDevice)
	assert.Equal(t, []int{512, 512}, ds[0].Resolution)
	assert.Equal(t, 1024, ds[0].MaxBucketReso)
	require.Len(t, ds[0].Subsets, 1)
	assert.Equal(t, "10_cat", ds[0].Subsets[0].ImageDir)

	want := []TagCount{{"cat", 20}, {"sitting", 7}}
	if diff := cmp.Diff(want, m.TopTags(0)); diff != "" {
		t.Errorf("TopTags mismatch (-want +got):\n%s", diff)
	}
}

func TestDatasetsMalformed(t *testing.T) {
	m := Parse(map[string]string{
		KeyDatasets:     `[{"batch_size_per_device": `,
		KeyTagFrequency: `not json`,
		KeyDatasetDirs:  `None`,
	})

	assert.Empty(t, m.Datasets())
	assert.NotNil(t, m.Datasets())
	assert.Empty(t, m.TagFrequency())
	assert.Empty(t, m.DatasetDirs())
}

func TestCompare(t *testing.T) {
	a := Parse(map[string]string{"ss_lr": "1e-4", "ss_epoch": "10", "ss_seed": "42"})
	b := Parse(map[string]string{"ss_lr": "5e-5", "ss_epoch": "10", "ss_steps": "500"})

	want := Diff{
		Added:   []Entry{{Key: "ss_steps", Value: "500"}},
		Removed: []Entry{{Key: "ss_seed", Value: "42"}},
		Changed: []Change{{Key: "ss_lr", Old: "1e-4", New: "5e-5"}},
	}

	if diff := cmp.Diff(want, Compare(a, b)); diff != "" {
		t.Errorf("Compare mismatch (-want +got):\n%s", diff)
	}

	if !Compare(a, a).Empty() {
		t.Error("Erwartete leeren Diff fuer identische Metadaten")
	}
}

func TestMarshalKeepsOrder(t *testing.T) {
	var m Metadata
	require.NoError(t, json.Unmarshal([]byte(`{"z": "1", "a": "2", "m": "3"}`), &m))
	assert.Equal(t, []string{"z", "a", "m"}, m.Keys())

	bts, err := json.Marshal(&m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"z": "1", "a": "2", "m": "3"}`, string(bts))
	assert.Equal(t, `{"z":"1","a":"2","m":"3"}`, string(bts))
}
