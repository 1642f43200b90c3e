package safetensors

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.safetensors")
	err := WriteFile(path, []Tensor{
		{Name: "b.lora_up.weight", DType: DTypeF32, Shape: []uint64{2, 1}, Data: make([]byte, 8)},
		{Name: "a.lora_down.weight", DType: DTypeF16, Shape: []uint64{1, 3}, Data: []byte{1, 2, 3, 4, 5, 6}},
		{Name: "a.alpha", DType: DTypeF32, Data: []byte{0, 0, 128, 63}},
	}, map[string]string{"ss_network_module": "networks.lora"})
	require.NoError(t, err)

	return path
}

func TestOpen(t *testing.T) {
	f, err := Open(writeTestFile(t))
	require.NoError(t, err)
	defer f.Close()

	if diff := cmp.Diff([]string{"b.lora_up.weight", "a.lora_down.weight", "a.alpha"}, f.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}

	if got := f.MetadataMap()["ss_network_module"]; got != "networks.lora" {
		t.Errorf("Metadaten falsch: %q", got)
	}

	info, ok := f.TensorInfo("a.alpha")
	require.True(t, ok)
	if info.NumElements() != 1 || info.NumBytes() != 4 {
		t.Errorf("Skalar falsch: elements=%d bytes=%d", info.NumElements(), info.NumBytes())
	}

	if f.Digest() == "" || f.NumTensors() != 3 {
		t.Errorf("Digest oder Anzahl falsch: %q %d", f.Digest(), f.NumTensors())
	}
}

func TestTensorReader(t *testing.T) {
	f, err := Open(writeTestFile(t))
	require.NoError(t, err)
	defer f.Close()

	info, r, err := f.TensorReader("a.lora_down.weight")
	require.NoError(t, err)
	require.Equal(t, DTypeF16, info.DType)

	bts, err := io.ReadAll(r)
	require.NoError(t, err)
	if diff := cmp.Diff([]byte{1, 2, 3, 4, 5, 6}, bts); diff != "" {
		t.Errorf("Daten mismatch (-want +got):\n%s", diff)
	}

	_, _, err = f.TensorReader("missing")
	if !errors.Is(err, ErrTensorNotFound) {
		t.Errorf("Erwartete ErrTensorNotFound, bekam %v", err)
	}
}

func TestTensorInfosOrder(t *testing.T) {
	f, err := Open(writeTestFile(t))
	require.NoError(t, err)
	defer f.Close()

	var names []string
	for i, info := range f.TensorInfos() {
		if i != len(names) {
			t.Errorf("Index %d, erwartet %d", i, len(names))
		}
		names = append(names, info.Name)
	}

	if diff := cmp.Diff(f.Keys(), names); diff != "" {
		t.Errorf("TensorInfos mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenInvalid(t *testing.T) {
	dir := t.TempDir()

	cases := map[string][]byte{
		"leer":              {},
		"zu grosser header": binary.LittleEndian.AppendUint64(nil, 1<<40),
		"kein json":         append(binary.LittleEndian.AppendUint64(nil, 4), []byte("nope")...),
		"offsets ausserhalb": append(binary.LittleEndian.AppendUint64(nil, 55),
			[]byte(`{"x":{"dtype":"F32","shape":[4],"data_offsets":[0,16]}}`)...),
		"shape passt nicht": append(binary.LittleEndian.AppendUint64(nil, 54),
			[]byte(`{"x":{"dtype":"F32","shape":[2],"data_offsets":[0,4]}}`)...),
	}
	cases["shape passt nicht"] = append(cases["shape passt nicht"], 0, 0, 0, 0)

	// 2^62 * 4 Elemente * 4 Bytes laeuft ueber und darf nicht als 0 Bytes durchgehen
	overflow := []byte(`{"x":{"dtype":"F32","shape":[4611686018427387904,4],"data_offsets":[0,0]}}`)
	cases["shape ueberlauf"] = append(binary.LittleEndian.AppendUint64(nil, uint64(len(overflow))), overflow...)

	for name, bts := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, bts, 0o644))

			_, err := Open(path)
			if err == nil {
				t.Fatal("Erwartete Fehler")
			}
			if !errors.Is(err, ErrInvalidHeader) {
				t.Errorf("Erwartete ErrInvalidHeader, bekam %v", err)
			}
		})
	}
}

func TestNumElementsOverflow(t *testing.T) {
	info := TensorInfo{DType: DTypeF32, Shape: []uint64{1 << 62, 4}}
	if n := info.NumElements(); n != 0 {
		t.Errorf("Erwartete 0 bei Ueberlauf, bekam %d", n)
	}
	if _, ok := info.checkedNumBytes(); ok {
		t.Error("Ueberlauf nicht erkannt")
	}

	info.Shape = []uint64{1 << 30, 2}
	n, ok := info.checkedNumBytes()
	require.True(t, ok)
	if n != 1<<33 {
		t.Errorf("Erwartete %d Bytes, bekam %d", uint64(1<<33), n)
	}
}

func TestDigestCoversData(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteFile(path, []Tensor{
			{Name: "a.lora_up.weight", DType: DTypeF32, Shape: []uint64{2, 1}, Data: data},
		}, map[string]string{"ss_network_module": "networks.lora"}))
		return path
	}

	digestOf := func(path string) string {
		f, err := Open(path)
		require.NoError(t, err)
		defer f.Close()
		return f.Digest()
	}

	a := digestOf(write("a.safetensors", []byte{0, 0, 128, 63, 0, 0, 0, 64}))
	b := digestOf(write("b.safetensors", []byte{0, 0, 128, 63, 0, 0, 64, 64}))
	same := digestOf(write("c.safetensors", []byte{0, 0, 128, 63, 0, 0, 0, 64}))

	if a == b {
		t.Errorf("Gleicher Header, andere Gewichte: Digest sollte sich unterscheiden (%s)", a)
	}
	if a != same {
		t.Errorf("Gleicher Inhalt sollte gleichen Digest haben: %s != %s", a, same)
	}
}
