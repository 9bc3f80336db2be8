package profile

import (
	"sort"

	"flowrelay/internal/footprint"
	"flowrelay/internal/market"
)

// ValueAreaRatio is the share of total volume the value area must cover.
const ValueAreaRatio = 0.7

// Level is the traded volume at one tick-aligned price.
type Level struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// ValueArea bounds the price levels selected into the value area.
type ValueArea struct {
	High float64 `json:"high"`
	Low  float64 `json:"low"`
}

// Data is a fixed range volume profile. VolumeAtPrice keeps buckets in the order their
// price was first traded within the range.
type Data struct {
	VolumeAtPrice []Level   `json:"volumeAtPrice"`
	PocPrice      float64   `json:"pocPrice"`
	MaxVolume     float64   `json:"maxVolume"`
	ValueArea     ValueArea `json:"valueArea"`
	TotalVolume   float64   `json:"totalVolume"`
}

// Calculate builds the volume profile of trades with startTime <= time <= endTime.
// No matching trades yields a zero-valued profile with an empty bucket list.
func Calculate(trades []market.Trade, startTime, endTime int64, tickSize float64) (Data, error) {
	if _, err := footprint.RoundToTick(0, tickSize); err != nil {
		return Data{}, err
	}

	data := Data{VolumeAtPrice: []Level{}}
	index := make(map[float64]int)

	for _, t := range trades {
		if t.Time < startTime || t.Time > endTime {
			continue
		}
		price, err := footprint.RoundToTick(t.Price, tickSize)
		if err != nil {
			return Data{}, err
		}
		i, ok := index[price]
		if !ok {
			i = len(data.VolumeAtPrice)
			index[price] = i
			data.VolumeAtPrice = append(data.VolumeAtPrice, Level{Price: price})
		}
		data.VolumeAtPrice[i].Volume += t.Quantity
	}

	if len(data.VolumeAtPrice) == 0 {
		return data, nil
	}

	// Ties keep the first bucket discovered, so the POC follows trade order, not price order.
	for _, l := range data.VolumeAtPrice {
		if l.Volume > data.MaxVolume {
			data.MaxVolume = l.Volume
			data.PocPrice = l.Price
		}
		data.TotalVolume += l.Volume
	}
	data.ValueArea = valueArea(data.VolumeAtPrice, data.TotalVolume)
	return data, nil
}

// valueArea bounds the buckets chosen by selectValueArea.
func valueArea(levels []Level, total float64) ValueArea {
	selected := selectValueArea(levels, total)
	if len(selected) == 0 {
		return ValueArea{}
	}

	va := ValueArea{High: selected[0].Price, Low: selected[0].Price}
	for _, l := range selected[1:] {
		if l.Price > va.High {
			va.High = l.Price
		}
		if l.Price < va.Low {
			va.Low = l.Price
		}
	}
	return va
}

// selectValueArea greedily takes the heaviest buckets until ValueAreaRatio of the volume
// is covered. The selection is not required to be a contiguous price range.
func selectValueArea(levels []Level, total float64) []Level {
	if len(levels) == 0 || total == 0 {
		return nil
	}

	sorted := make([]Level, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Volume > sorted[j].Volume })

	target := total * ValueAreaRatio
	var acc float64
	var selected []Level
	for _, l := range sorted {
		if acc >= target {
			break
		}
		acc += l.Volume
		selected = append(selected, l)
	}
	return selected
}

// ByPrice returns the buckets sorted from the highest price to the lowest, the order
// they are drawn in.
func (d Data) ByPrice() []Level {
	out := make([]Level, len(d.VolumeAtPrice))
	copy(out, d.VolumeAtPrice)
	sort.Slice(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	return out
}
