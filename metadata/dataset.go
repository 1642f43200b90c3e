// dataset.go - Datensatz-Informationen aus den Trainings-Metadaten

package metadata

// DatasetDir beschreibt ein Bild-Verzeichnis aus ss_dataset_dirs
type DatasetDir struct {
	Repeats  int `json:"n_repeats"`
	ImgCount int `json:"img_count"`
}

// DatasetDirs dekodiert ss_dataset_dirs
func (m *Metadata) DatasetDirs() map[string]DatasetDir {
	dirs := map[string]DatasetDir{}
	if !decodeField(m, KeyDatasetDirs, &dirs) {
		return map[string]DatasetDir{}
	}
	return dirs
}

// TagFrequency dekodiert ss_tag_frequency (Verzeichnis -> Tag -> Anzahl)
func (m *Metadata) TagFrequency() map[string]map[string]int {
	freq := map[string]map[string]int{}
	if !decodeField(m, KeyTagFrequency, &freq) {
		return map[string]map[string]int{}
	}
	return freq
}

// Subset ist ein Teil-Datensatz innerhalb eines Datensatzes
type Subset struct {
	ImageDir        string     `json:"image_dir,omitempty"`
	ImgCount        int        `json:"img_count,omitempty"`
	NumRepeats      int        `json:"num_repeats,omitempty"`
	ClassTokens     string     `json:"class_tokens,omitempty"`
	IsReg           bool       `json:"is_reg,omitempty"`
	ShuffleCaption  bool       `json:"shuffle_caption,omitempty"`
	KeepTokens      int        `json:"keep_tokens,omitempty"`
	FlipAug         bool       `json:"flip_aug,omitempty"`
	CaptionDropout  LooseFloat `json:"caption_dropout_rate,omitempty"`
	CaptionExt      string     `json:"caption_extension,omitempty"`
	ColorAug        bool       `json:"color_aug,omitempty"`
	RandomCrop      bool       `json:"random_crop,omitempty"`
	AlphaMask       bool       `json:"alpha_mask,omitempty"`
	TokenWarmupStep int        `json:"token_warmup_step,omitempty"`
}

// Dataset ist ein Eintrag aus ss_datasets
type Dataset struct {
	IsDreambooth       bool                      `json:"is_dreambooth"`
	BatchSizePerDevice int                       `json:"batch_size_per_device"`
	NumTrainImages     int                       `json:"num_train_images"`
	NumRegImages       int                       `json:"num_reg_images"`
	Resolution         []int                     `json:"resolution,omitempty"`
	EnableBucket       bool                      `json:"enable_bucket"`
	MinBucketReso      int                       `json:"min_bucket_reso,omitempty"`
	MaxBucketReso      int                       `json:"max_bucket_reso,omitempty"`
	TagFrequency       map[string]map[string]int `json:"tag_frequency,omitempty"`
	Subsets            []Subset                  `json:"subsets,omitempty"`
}

// Datasets dekodiert ss_datasets; kaputtes JSON ergibt eine leere Liste
func (m *Metadata) Datasets() []Dataset {
	var ds []Dataset
	if !decodeField(m, KeyDatasets, &ds) {
		return []Dataset{}
	}
	return ds
}

// TopTags gibt die haeufigsten Tags ueber alle Verzeichnisse zurueck
func (m *Metadata) TopTags(n int) []TagCount {
	totals := map[string]int{}
	for _, tags := range m.TagFrequency() {
		for tag, count := range tags {
			totals[tag] += count
		}
	}

	out := make([]TagCount, 0, len(totals))
	for tag, count := range totals {
		out = append(out, TagCount{Tag: tag, Count: count})
	}
	sortTagCounts(out)

	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// TagCount ist ein Tag mit seiner Gesamt-Haeufigkeit
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}
