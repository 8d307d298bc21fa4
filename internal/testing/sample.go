package testing

// Sample builds a small netCDF-4 file:
//
//	dimensions: time = UNLIMITED (3), lat = 2, lon = 4
//	global attributes: title = "sample", version = 2
//	variables:
//	  double time(time)
//	  float temp(lat, lon), units = "K", _FillValue = -999, chunked and deflated
//	  short pressure(time), scale_factor = 0.5f, add_offset = 100f
//	  int station_id
//	  char label(lon) = "abcd"
//	group forecast, model = "gfs":
//	  double wind(lon)
//	  ubyte flags(5), no dimension scales
//	  int grid(5, 5), no dimension scales
//
// When classic is set the root carries _nc3_strict.
func Sample(format Format, classic bool) []byte {
	b := NewBuilder(format)

	timeVar := b.Dataset(Dataset{
		Type:    Float64(),
		Dims:    []uint64{3},
		MaxDims: []uint64{Undefined},
		Data:    LE([]float64{0, 6, 12}),
		Layout:  Chunked,
		Chunk:   []uint64{2},
		Attrs:   append(ScaleAttrs("time", 0), Text("units", "hours since 2000-01-01")),
	})
	lat := b.Dimension(2, 1)
	lon := b.Dimension(4, 2)

	temp := b.Dataset(Dataset{
		Type:    Float32(),
		Dims:    []uint64{2, 4},
		Data:    LE([]float32{1, 2, 3, 4, 5, 6, 7, 8}),
		Layout:  Chunked,
		Chunk:   []uint64{1, 4},
		Shuffle: true,
		Deflate: true,
		Fill:    Float32Bits(-999),
		Attrs: []Attr{
			b.DimensionList(lat, lon),
			Text("units", "K"),
			Float32s("_FillValue", -999),
		},
	})
	pressure := b.Dataset(Dataset{
		Type: Int(2, true),
		Dims: []uint64{3},
		Data: LE([]int16{0, 2, 4}),
		Attrs: []Attr{
			b.DimensionList(timeVar),
			Float32s("scale_factor", 0.5),
			Float32s("add_offset", 100),
		},
	})
	station := b.Dataset(Dataset{Type: Int(4, true), Data: LE([]int32{42}), Layout: Compact})
	label := b.Dataset(Dataset{
		Type:  FixedString(1),
		Dims:  []uint64{4},
		Data:  []byte("abcd"),
		Attrs: []Attr{b.DimensionList(lon)},
	})

	wind := b.Dataset(Dataset{
		Type:  Float64(),
		Dims:  []uint64{4},
		Data:  LE([]float64{0.5, 1.5, 2.5, 3.5}),
		Attrs: []Attr{b.DimensionList(lon)},
	})
	flags := b.Dataset(Dataset{Type: Int(1, false), Dims: []uint64{5}, Data: []byte{1, 2, 3, 4, 5}})
	grid := make([]int32, 25)
	for i := range grid {
		grid[i] = int32(i) //nolint:gosec // G115: small test values
	}
	gridVar := b.Dataset(Dataset{Type: Int(4, true), Dims: []uint64{5, 5}, Data: LE(grid)})
	forecast := b.Group([]Member{
		{Name: "wind", Address: wind},
		{Name: "flags", Address: flags},
		{Name: "grid", Address: gridVar},
	}, Text("model", "gfs"))

	attrs := []Attr{Text("title", "sample"), Int32s("version", 2)}
	if classic {
		attrs = append(attrs, Int32s("_nc3_strict", 1))
	}
	root := b.Group([]Member{
		{Name: "time", Address: timeVar},
		{Name: "lat", Address: lat},
		{Name: "lon", Address: lon},
		{Name: "temp", Address: temp},
		{Name: "pressure", Address: pressure},
		{Name: "station_id", Address: station},
		{Name: "label", Address: label},
		{Name: "forecast", Address: forecast},
	}, attrs...)
	return b.Bytes(root)
}
