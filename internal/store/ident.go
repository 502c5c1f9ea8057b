package store

// EquipmentIdent identifies a piece of equipment by its visual and class
// attributes. The database stores the packed int32 form only.
type EquipmentIdent struct {
	ModelID int32 // 16 bits
	Color   int32 // 8 bits
	Typ     int32 // 4 bits
	Class   int32 // 4 bits, 0 when classless
}

// Bit layout of a packed ident.
const (
	identModelBits = 16
	identColorBits = 8
	identTypBits   = 4

	identColorShift = identModelBits
	identTypShift   = identColorShift + identColorBits
	identClassShift = identTypShift + identTypBits
)

// PackIdent packs an equipment ident into a single int32:
// model in bits 0..16, color 16..24, type 24..28, class 28..32.
func PackIdent(ident EquipmentIdent) int32 {
	res := int64(ident.ModelID)
	res |= int64(ident.Color) << identColorShift
	res |= int64(ident.Typ) << identTypShift
	res |= int64(ident.Class) << identClassShift

	return int32(res)
}

// UnpackIdent is the inverse of PackIdent.
func UnpackIdent(packed int32) EquipmentIdent {
	v := int64(packed) & 0xFFFFFFFF

	return EquipmentIdent{
		ModelID: int32(v & (1<<identModelBits - 1)),
		Color:   int32(v >> identColorShift & (1<<identColorBits - 1)),
		Typ:     int32(v >> identTypShift & (1<<identTypBits - 1)),
		Class:   int32(v >> identClassShift & 0xF),
	}
}
