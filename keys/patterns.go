// patterns.go - Pattern-Tabelle der Key-Klassifizierung
//
// Enthaelt die geordnete Liste der Recognizer. Jeder Recognizer besitzt
// Literal-Guards (Tokens, die nur in seiner Architektur vorkommen) und
// die Regex-Patterns, die die Felder des Keys extrahieren.
package keys

import "github.com/dlclark/regexp2"

// pattern extrahiert die benannten Gruppen eines Keys
type pattern struct {
	re *regexp2.Regexp

	// attention markiert SDXL-Patterns, fuer die die Triplet-Arithmetik gilt
	attention bool
}

// recognizer besitzt die Namenskonvention einer Architektur-Familie
type recognizer struct {
	name   string
	family Family

	// guards sind Literal-Tokens; ein leerer Slice macht den Recognizer zum Fallback
	guards []string

	patterns []pattern

	// literals ordnet Singleton-Tokens ihrem festen kanonischen Namen zu
	literals map[string]string
}

func mustCompile(expr string) *regexp2.Regexp {
	return regexp2.MustCompile(expr, regexp2.None)
}

// Singleton-Module ohne Block-Struktur. Die Reihenfolge ist Teil der
// Prioritaet: laengere Tokens vor ihren Praefixen.
var singletonTokens = []string{
	"unet_final_layer",
	"unet_t_embedder",
	"unet_cap_embedder",
	"unet_x_embedder",
	"unet_time_in",
	"unet_vector_in",
	"unet_guidance_in",
	"unet_img_in",
	"unet_txt_in",
	"unet_conv_in",
	"unet_conv_out",
	"unet_time_embedding",
	"unet_time_embed",
	"unet_label_emb",
}

var singletonNames = map[string]string{
	"unet_final_layer":    "FINAL",
	"unet_t_embedder":     "TEMB",
	"unet_cap_embedder":   "CEMB",
	"unet_x_embedder":     "XEMB",
	"unet_time_in":        "TIN",
	"unet_vector_in":      "VIN",
	"unet_guidance_in":    "GIN",
	"unet_img_in":         "IMGIN",
	"unet_txt_in":         "TXTIN",
	"unet_conv_in":        "CIN",
	"unet_conv_out":       "COUT",
	"unet_time_embedding": "TIME",
	"unet_time_embed":     "TIME",
	"unet_label_emb":      "LEMB",
}

// recognizers in Prioritaets-Reihenfolge
var recognizers = []recognizer{
	{
		name:   "flux-peft-single",
		family: FamilyFluxSingle,
		guards: []string{"transformer.single_transformer_blocks."},
		patterns: []pattern{
			{re: mustCompile(`transformer\.(?<block_type>single_transformer_blocks)\.(?<block_id>[0-9]+)\.(?<type>[A-Za-z0-9_]+)(\.(?<subtype>[A-Za-z0-9_]+))?`)},
		},
	},
	{
		name:   "flux-peft-double",
		family: FamilyFluxDouble,
		guards: []string{"transformer.transformer_blocks."},
		patterns: []pattern{
			{re: mustCompile(`transformer\.(?<block_type>transformer_blocks)\.(?<block_id>[0-9]+)\.(?<type>[A-Za-z0-9_]+)(\.(?<subtype>[A-Za-z0-9_]+))?`)},
		},
	},
	{
		name:     "singleton",
		family:   FamilyEmbedder,
		guards:   singletonTokens,
		literals: singletonNames,
	},
	{
		name:   "lumina",
		family: FamilyLumina,
		guards: []string{"unet_layers", "unet_noise_refiner", "unet_context_refiner"},
		patterns: []pattern{
			{re: mustCompile(`.*unet.*(?<block_type>layers|noise_refiner|context_refiner).*_(?<block_id>[0-9]+)_(?<type>adaLN_modulation|feed_forward|attention_out|attention_qkv)(?<subblock_type>_w[0-9]+)?`)},
		},
	},
	{
		name:   "gemma",
		family: FamilyGemma,
		guards: []string{"te_layers"},
		patterns: []pattern{
			{re: mustCompile(`.*te.*(?<block_type>layers).*_(?<block_id>[0-9]+)_(?<type>self_attn_q_proj|self_attn_k_proj|self_attn_v_proj|self_attn_o_proj|mlp_down_proj|mlp_up_proj|mlp_gate_proj)`)},
		},
	},
	{
		name:   "flux-double",
		family: FamilyFluxDouble,
		guards: []string{"double_blocks"},
		patterns: []pattern{
			{re: mustCompile(`lora_unet_(?<block_type>double_blocks)_(?<block_id>[0-9]+)_(?<modality>txt|img)_(?<subblock_type>attn_proj|attn_qkv|mlp_0|mlp_2|mod_lin)`)},
		},
	},
	{
		name:   "flux-single",
		family: FamilyFluxSingle,
		guards: []string{"single_blocks"},
		patterns: []pattern{
			{re: mustCompile(`lora_unet_(?<block_type>single_blocks)_(?<block_id>[0-9]+)_(?<subblock_type>linear1|linear2|modulation_lin)`)},
		},
	},
	{
		name:   "sdxl",
		family: FamilyUNetSDXL,
		guards: []string{"input_blocks", "output_blocks", "middle_block"},
		patterns: []pattern{
			{
				re:        mustCompile(`(?<block_type>input|output|middle)_blocks?_(?<block_id>[0-9]+)_((?<module_id>[0-9]+)_)?transformer_blocks_(?<subblock_id>[0-9]+)_(?<subtype>attn[0-9]+|ff)_(?<subblock_type>to_k|to_q|to_v|to_out_0|net_0_proj|net_2)`),
				attention: true,
			},
			{re: mustCompile(`(?<block_type>input|output|middle)_blocks?_(?<block_id>[0-9]+)_((?<module_id>[0-9]+)_)?(?<subtype>proj_in|proj_out|in_layers_[0-9]+|out_layers_[0-9]+|emb_layers_[0-9]+|skip_connection|conv|op)`)},
		},
	},
	{
		name:   "text-encoder",
		family: FamilyTextEncoder,
		guards: []string{"lora_te"},
		patterns: []pattern{
			{re: mustCompile(`te(?<encoder>[0-9])?_.*_(?<block_id>[0-9]+).*(?<block_type>self_attn|mlp)`)},
		},
	},
	{
		name:   "unet-mid",
		family: FamilyUNetSD,
		guards: []string{"mid_block_"},
		patterns: []pattern{
			{re: mustCompile(`.*(?<block_type>up|down|mid)_block_.*(?<type>resnets|attentions|upsamplers|downsamplers)_(?<block_id>[0-9]+)`)},
		},
	},
	{
		name:   "unet",
		family: FamilyUNetSD,
		patterns: []pattern{
			{re: mustCompile(`.*(?<block_type>up|down|mid)_blocks?_(?<block_id>[0-9]+).*(?<type>resnets|attentions|upsamplers|downsamplers)_(?<subblock_id>[0-9]+).*`)},
		},
	},
}
