package engine

// OutputShape identifies the decoded shape of a step output.
type OutputShape int

const (
	// ShapeUnstructured is the fallback for outputs with no known shape.
	ShapeUnstructured OutputShape = iota

	// ShapeAssetQuery is an output carrying a list of discovered assets.
	ShapeAssetQuery
)

// DecodedOutput is a step output decoded once into its known shape. Callers
// switch on Shape instead of re-inspecting the raw map.
type DecodedOutput struct {
	// Shape is the detected output shape.
	Shape OutputShape

	// AssetQuery is set when Shape is ShapeAssetQuery.
	AssetQuery *AssetQueryOutput

	// Raw is the undecoded output map.
	Raw map[string]interface{}
}

// AssetQueryOutput is the decoded form of an output carrying an asset list,
// as produced by asset discovery tools.
type AssetQueryOutput struct {
	// Assets is the discovered asset list. Items are usually maps with
	// hostname, ip_address, os, status and environment keys.
	Assets []interface{}

	// Count is the length of Assets.
	Count int
}

// Hostnames returns the non-empty hostname fields of the assets, in order.
func (o *AssetQueryOutput) Hostnames() []string {
	return o.stringField("hostname")
}

// IPAddresses returns the non-empty ip_address fields of the assets, in order.
func (o *AssetQueryOutput) IPAddresses() []string {
	return o.stringField("ip_address")
}

func (o *AssetQueryOutput) stringField(key string) []string {
	out := make([]string, 0, len(o.Assets))
	for _, item := range o.Assets {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if s, ok := m[key].(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// DecodeOutput inspects a step output for well-known shapes. An output whose
// "assets" key holds a list decodes as ShapeAssetQuery; everything else,
// including a nil output, is ShapeUnstructured.
func DecodeOutput(output map[string]interface{}) DecodedOutput {
	d := DecodedOutput{Shape: ShapeUnstructured, Raw: output}
	if output == nil {
		return d
	}
	raw, ok := output["assets"]
	if !ok {
		return d
	}
	var assets []interface{}
	switch v := raw.(type) {
	case []interface{}:
		assets = v
	case []map[string]interface{}:
		assets = make([]interface{}, len(v))
		for i, m := range v {
			assets[i] = m
		}
	default:
		return d
	}
	d.Shape = ShapeAssetQuery
	d.AssetQuery = &AssetQueryOutput{Assets: assets, Count: len(assets)}
	return d
}

func decodeAssetQuery(output map[string]interface{}) (*AssetQueryOutput, bool) {
	d := DecodeOutput(output)
	if d.Shape != ShapeAssetQuery {
		return nil, false
	}
	return d.AssetQuery, true
}
