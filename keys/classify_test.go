package keys

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyExamples(t *testing.T) {
	cases := []struct {
		key  string
		want ParsedKey
	}{
		{
			key: "lora_unet_down_blocks_0_resnets_1_conv1.lora_down.weight",
			want: ParsedKey{
				Family: FamilyUNetSD, BlockType: "down", BlockID: 0, SubBlockID: 1,
				LinearIndex: 1, CanonicalName: "IN01", IsConvolution: true, SubType: "resnets",
			},
		},
		{
			key: "lora_unet_down_blocks_0_downsamplers_0_conv.lora_up.weight",
			want: ParsedKey{
				Family: FamilyUNetSD, BlockType: "down", BlockID: 0, SubBlockID: 0,
				LinearIndex: 2, CanonicalName: "IN02", IsSampler: true, SubType: "downsamplers",
			},
		},
		{
			key: "lora_unet_up_blocks_3_attentions_2_transformer_blocks_0_attn2_to_k",
			want: ParsedKey{
				Family: FamilyUNetSD, BlockType: "up", BlockID: 3, SubBlockID: 2,
				LinearIndex: 11, CanonicalName: "OUT24", IsAttention: true, SubType: "attentions",
			},
		},
		{
			key: "lora_unet_mid_block_attentions_0_proj_in",
			want: ParsedKey{
				Family: FamilyUNetSD, BlockType: "mid", BlockID: 0, SubBlockID: Absent,
				LinearIndex: Absent, CanonicalName: "MID00", IsAttention: true, SubType: "attentions",
			},
		},
		{
			key: "lora_unet_double_blocks_7_img_attn_qkv",
			want: ParsedKey{
				Family: FamilyFluxDouble, BlockType: "double_blocks", BlockID: 7, SubBlockID: Absent,
				LinearIndex: 7, CanonicalName: "DB07", IsAttention: true, SubType: "attn_qkv", Modality: "img",
			},
		},
		{
			key: "lora_unet_single_blocks_2_linear1",
			want: ParsedKey{
				Family: FamilyFluxSingle, BlockType: "single_blocks", BlockID: 2, SubBlockID: 0,
				LinearIndex: 2, CanonicalName: "SB02", IsAttention: true, SubType: "linear1",
			},
		},
		{
			key: "lora_te_text_model_encoder_layers_5_self_attn_k_proj",
			want: ParsedKey{
				Family: FamilyTextEncoder, BlockType: "self_attn", BlockID: 5, SubBlockID: Absent,
				LinearIndex: 5, CanonicalName: "TE05", IsAttention: true, SubType: "self_attn",
			},
		},
		{
			key: "lora_te_text_model_encoder_layers_5_mlp_fc1",
			want: ParsedKey{
				Family: FamilyTextEncoder, BlockType: "mlp", BlockID: 5, SubBlockID: Absent,
				LinearIndex: 5, CanonicalName: "TE05", SubType: "mlp",
			},
		},
		{
			key: "lora_te2_text_model_encoder_layers_11_self_attn_out_proj",
			want: ParsedKey{
				Family: FamilyTextEncoder, BlockType: "self_attn", BlockID: 11, SubBlockID: Absent,
				LinearIndex: 11, CanonicalName: "TE11", IsAttention: true, SubType: "self_attn", Encoder: 2,
			},
		},
		{
			key: "lora_unet_noise_refiner_1_attention_qkv",
			want: ParsedKey{
				Family: FamilyLumina, BlockType: "noise_refiner", BlockID: 1, SubBlockID: Absent,
				LinearIndex: 1, CanonicalName: "NB01", IsAttention: true, SubType: "attention_qkv",
			},
		},
		{
			key: "lora_unet_layers_12_feed_forward_w2",
			want: ParsedKey{
				Family: FamilyLumina, BlockType: "layers", BlockID: 12, SubBlockID: Absent,
				LinearIndex: 12, CanonicalName: "LB12", SubType: "feed_forward_w2",
			},
		},
		{
			key: "lora_te_layers_3_mlp_gate_proj",
			want: ParsedKey{
				Family: FamilyGemma, BlockType: "layers", BlockID: 3, SubBlockID: Absent,
				LinearIndex: 3, CanonicalName: "TE03", SubType: "mlp_gate_proj",
			},
		},
		{
			key: "lora_unet_t_embedder_mlp_0",
			want: ParsedKey{
				Family: FamilyEmbedder, BlockType: "t_embedder", BlockID: Absent, SubBlockID: Absent,
				LinearIndex: 0, CanonicalName: "TEMB",
			},
		},
		{
			key: "lora_unet_input_blocks_4_1_transformer_blocks_1_attn1_to_q",
			want: ParsedKey{
				Family: FamilyUNetSDXL, BlockType: "input", BlockID: 4, SubBlockID: 1,
				LinearIndex: 13, CanonicalName: "IN13", IsAttention: true, SubType: "attn1",
			},
		},
		{
			key: "lora_unet_output_blocks_0_1_transformer_blocks_0_ff_net_2",
			want: ParsedKey{
				Family: FamilyUNetSDXL, BlockType: "output", BlockID: 0, SubBlockID: 0,
				LinearIndex: 0, CanonicalName: "OUT27", IsAttention: true, SubType: "ff",
			},
		},
		{
			key: "lora_unet_input_blocks_4_1_proj_in",
			want: ParsedKey{
				Family: FamilyUNetSDXL, BlockType: "input", BlockID: 4, SubBlockID: 1,
				LinearIndex: Absent, CanonicalName: "INB04", IsAttention: true, SubType: "proj_in",
			},
		},
		{
			key: "lora_unet_input_blocks_1_0_in_layers_2",
			want: ParsedKey{
				Family: FamilyUNetSDXL, BlockType: "input", BlockID: 1, SubBlockID: 0,
				LinearIndex: Absent, CanonicalName: "INB01", IsConvolution: true, SubType: "in_layers_2",
			},
		},
		{
			key: "transformer.single_transformer_blocks.9.attn.to_k.lora_A.weight",
			want: ParsedKey{
				Family: FamilyFluxSingle, BlockType: "single_transformer_blocks", BlockID: 9, SubBlockID: 0,
				LinearIndex: 9, CanonicalName: "SB09", IsAttention: true, SubType: "attn.to_k",
			},
		},
		{
			key: "transformer.transformer_blocks.3.attn.add_q_proj.lora_B.weight",
			want: ParsedKey{
				Family: FamilyFluxDouble, BlockType: "transformer_blocks", BlockID: 3, SubBlockID: Absent,
				LinearIndex: 3, CanonicalName: "DB03", IsAttention: true, SubType: "attn.add_q_proj", Modality: "txt",
			},
		},
	}

	for _, tt := range cases {
		t.Run(tt.key, func(t *testing.T) {
			got, err := Classify(tt.key)
			require.NoError(t, err)

			tt.want.SourceKey = tt.key
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Classify(%q) mismatch (-want +got):\n%s", tt.key, diff)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	for _, k := range supportedKeys() {
		a, errA := Classify(k)
		b, errB := Classify(k)
		require.NoError(t, errA, k)
		require.NoError(t, errB, k)
		assert.Equal(t, a, b, k)
	}
}

func TestClassifyTotal(t *testing.T) {
	for _, k := range supportedKeys() {
		p, err := Classify(k)
		if err != nil {
			t.Errorf("Unerwarteter Fehler fuer %q: %v", k, err)
			continue
		}
		if p.Family == FamilyUnrecognized {
			t.Errorf("%q wurde als unrecognized klassifiziert", k)
		}
		if p.CanonicalName == "" {
			t.Errorf("%q hat keinen kanonischen Namen", k)
		}
	}
}

func TestClassifyUnrecognized(t *testing.T) {
	cases := []string{
		"",
		"hello",
		"model.diffusion_model.foo",
		"lora_unet_double_blocks_x_img_attn_qkv",
		"lora_te_text_model_embeddings_position",
		"lora_unet_up_blocks_resnets",
	}

	for _, k := range cases {
		t.Run(k, func(t *testing.T) {
			_, err := Classify(k)
			if err == nil {
				t.Fatalf("Erwartete Fehler fuer %q", k)
			}

			if !errors.Is(err, ErrUnrecognizedKeyFormat) {
				t.Errorf("Fehler sollte ErrUnrecognizedKeyFormat sein: %v", err)
			}

			var uerr *UnrecognizedKeyError
			if !errors.As(err, &uerr) || uerr.Key != k {
				t.Errorf("Fehler sollte den Key %q tragen: %v", k, err)
			}
		})
	}
}

// SD1.x Keys, deren transformer_blocks Segment nicht als Flux PEFT gelten darf
func TestClassifyTransformerBlocksInUNet(t *testing.T) {
	p, err := Classify("lora_unet_down_blocks_1_attentions_1_transformer_blocks_0_attn1_to_v")
	require.NoError(t, err)
	assert.Equal(t, FamilyUNetSD, p.Family)
	assert.Equal(t, "IN04", p.CanonicalName)
}

func TestEmbeddersDoNotCollideWithTextEncoder(t *testing.T) {
	emb := MustClassify("lora_unet_t_embedder_mlp_2")
	te := MustClassify("lora_te_text_model_encoder_layers_0_mlp_fc1")

	assert.NotEqual(t, te.CanonicalName, emb.CanonicalName)
	assert.NotEqual(t, te.Family, emb.Family)
}

func TestMonotonicDownPath(t *testing.T) {
	var prev ParsedKey
	for b := range 4 {
		for s := range 2 {
			p := MustClassify(fmt.Sprintf("lora_unet_down_blocks_%d_attentions_%d_proj_in", b, s))
			if prev.SourceKey != "" {
				require.Greater(t, p.LinearIndex, prev.LinearIndex)
				require.Greater(t, suffix(t, p.CanonicalName), suffix(t, prev.CanonicalName))
			}
			prev = p
		}
	}
}

func TestDownUpDisjoint(t *testing.T) {
	down := map[string]bool{}
	up := map[string]bool{}
	for b := range 4 {
		for s := range 3 {
			for _, typ := range []string{"resnets", "attentions"} {
				down[MustClassify(fmt.Sprintf("lora_unet_down_blocks_%d_%s_%d_conv1", b, typ, s)).CanonicalName] = true
				up[MustClassify(fmt.Sprintf("lora_unet_up_blocks_%d_%s_%d_conv1", b, typ, s)).CanonicalName] = true
			}
		}
		down[MustClassify(fmt.Sprintf("lora_unet_down_blocks_%d_downsamplers_0_conv", b)).CanonicalName] = true
		up[MustClassify(fmt.Sprintf("lora_unet_up_blocks_%d_upsamplers_0_conv", b)).CanonicalName] = true
	}

	for name := range down {
		if up[name] {
			t.Errorf("%s kommt in Down- und Up-Pfad vor", name)
		}
	}
}

func TestChartIndexOrdersStages(t *testing.T) {
	down := MustClassify("lora_unet_down_blocks_3_resnets_1_conv1")
	mid := MustClassify("lora_unet_mid_block_resnets_0_conv1")
	up := MustClassify("lora_unet_up_blocks_0_resnets_0_conv1")

	assert.Less(t, down.ChartIndex(), mid.ChartIndex())
	assert.Less(t, mid.ChartIndex(), up.ChartIndex())
}

func TestFamilyText(t *testing.T) {
	for _, f := range Families() {
		b, err := f.MarshalText()
		require.NoError(t, err)

		var got Family
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, f, got)
	}

	var f Family
	assert.Error(t, f.UnmarshalText([]byte("unet-sd3")))
}

func suffix(t *testing.T, name string) int {
	t.Helper()
	n, err := strconv.Atoi(strings.TrimLeft(name, "INOUTMD"))
	require.NoError(t, err)
	return n
}

func supportedKeys() []string {
	return []string{
		"lora_unet_down_blocks_0_attentions_0_proj_in.lora_down.weight",
		"lora_unet_down_blocks_2_resnets_1_conv2.alpha",
		"lora_unet_up_blocks_1_upsamplers_0_conv.lora_up.weight",
		"lora_unet_mid_block_resnets_1_time_emb_proj",
		"lora_te_text_model_encoder_layers_0_self_attn_q_proj.lora_down.weight",
		"lora_te1_text_model_encoder_layers_10_mlp_fc2",
		"lora_unet_double_blocks_18_txt_mod_lin",
		"lora_unet_single_blocks_37_modulation_lin",
		"lora_unet_time_in_in_layer",
		"lora_unet_vector_in_out_layer",
		"lora_unet_guidance_in_in_layer",
		"lora_unet_img_in",
		"lora_unet_txt_in",
		"lora_unet_final_layer_linear",
		"lora_unet_cap_embedder_1",
		"lora_unet_x_embedder",
		"lora_unet_context_refiner_0_attention_out",
		"lora_unet_layers_25_adaLN_modulation_1",
		"lora_te_layers_0_self_attn_o_proj",
		"lora_unet_middle_block_1_transformer_blocks_0_attn2_to_out_0",
		"lora_unet_output_blocks_5_1_proj_out",
		"lora_unet_input_blocks_3_0_op",
		"lora_unet_output_blocks_2_2_conv",
		"transformer.transformer_blocks.0.ff_context.net.0.proj",
		"transformer.single_transformer_blocks.0.proj_out",
		"lora_unet_conv_in",
		"lora_unet_time_embedding_linear_1",
	}
}
