package broker

// SymbolInfo carries broker-supplied contract constraints for one symbol.
type SymbolInfo struct {
	Symbol       string  `json:"symbol"`
	ContractSize float64 `json:"contract_size"`
	VolumeMin    float64 `json:"volume_min"`
	VolumeMax    float64 `json:"volume_max"` // 0 means no upper bound
	VolumeStep   float64 `json:"volume_step"`
}
