package circuit

// typeSpec maps a netlist cell-type string onto the closed enumeration plus
// its polarity bits.
type typeSpec struct {
	typ CellType
	dff DffSpec
}

// cellTypes covers the gate-level cell names a synthesized netlist uses.
// Register names encode the polarities positionally: clock edge, then reset
// level and value, then enable level.
var cellTypes = map[string]typeSpec{
	"$_BUF_":    {typ: CellBuf},
	"$_NOT_":    {typ: CellNot},
	"$_AND_":    {typ: CellAnd},
	"$_NAND_":   {typ: CellNand},
	"$_OR_":     {typ: CellOr},
	"$_NOR_":    {typ: CellNor},
	"$_XOR_":    {typ: CellXor},
	"$_XNOR_":   {typ: CellXnor},
	"$_ANDNOT_": {typ: CellAndNot},
	"$_ORNOT_":  {typ: CellOrNot},
	"$_MUX_":    {typ: CellMux},

	"$_DFF_P_": {typ: CellDff, dff: DffSpec{ClockPos: true}},
	"$_DFF_N_": {typ: CellDff},

	"$_DFF_PP0_": {typ: CellDffR, dff: DffSpec{ClockPos: true, ResetPos: true}},
	"$_DFF_PP1_": {typ: CellDffR, dff: DffSpec{ClockPos: true, ResetPos: true, ResetVal: true}},
	"$_DFF_PN0_": {typ: CellDffR, dff: DffSpec{ClockPos: true}},
	"$_DFF_PN1_": {typ: CellDffR, dff: DffSpec{ClockPos: true, ResetVal: true}},
	"$_DFF_NP0_": {typ: CellDffR, dff: DffSpec{ResetPos: true}},
	"$_DFF_NP1_": {typ: CellDffR, dff: DffSpec{ResetPos: true, ResetVal: true}},
	"$_DFF_NN0_": {typ: CellDffR},
	"$_DFF_NN1_": {typ: CellDffR, dff: DffSpec{ResetVal: true}},

	"$_SDFF_PP0_": {typ: CellDffR, dff: DffSpec{ClockPos: true, ResetPos: true}},
	"$_SDFF_PP1_": {typ: CellDffR, dff: DffSpec{ClockPos: true, ResetPos: true, ResetVal: true}},
	"$_SDFF_PN0_": {typ: CellDffR, dff: DffSpec{ClockPos: true}},
	"$_SDFF_PN1_": {typ: CellDffR, dff: DffSpec{ClockPos: true, ResetVal: true}},
	"$_SDFF_NP0_": {typ: CellDffR, dff: DffSpec{ResetPos: true}},
	"$_SDFF_NP1_": {typ: CellDffR, dff: DffSpec{ResetPos: true, ResetVal: true}},
	"$_SDFF_NN0_": {typ: CellDffR},
	"$_SDFF_NN1_": {typ: CellDffR, dff: DffSpec{ResetVal: true}},

	"$_DFFE_PP_": {typ: CellDffE, dff: DffSpec{ClockPos: true, EnablePos: true}},
	"$_DFFE_PN_": {typ: CellDffE, dff: DffSpec{ClockPos: true}},
	"$_DFFE_NP_": {typ: CellDffE, dff: DffSpec{EnablePos: true}},
	"$_DFFE_NN_": {typ: CellDffE},

	"$_DFFE_PP0P_": {typ: CellDffER, dff: DffSpec{ClockPos: true, ResetPos: true, EnablePos: true}},
	"$_DFFE_PP1P_": {typ: CellDffER, dff: DffSpec{ClockPos: true, ResetPos: true, ResetVal: true, EnablePos: true}},
	"$_DFFE_PN0P_": {typ: CellDffER, dff: DffSpec{ClockPos: true, EnablePos: true}},
	"$_DFFE_PN1P_": {typ: CellDffER, dff: DffSpec{ClockPos: true, ResetVal: true, EnablePos: true}},
	"$_DFFE_PP0N_": {typ: CellDffER, dff: DffSpec{ClockPos: true, ResetPos: true}},
	"$_DFFE_PP1N_": {typ: CellDffER, dff: DffSpec{ClockPos: true, ResetPos: true, ResetVal: true}},

	"$_SDFFE_PP0P_": {typ: CellDffER, dff: DffSpec{ClockPos: true, ResetPos: true, EnablePos: true}},
	"$_SDFFE_PP1P_": {typ: CellDffER, dff: DffSpec{ClockPos: true, ResetPos: true, ResetVal: true, EnablePos: true}},
	"$_SDFFE_PN0P_": {typ: CellDffER, dff: DffSpec{ClockPos: true, EnablePos: true}},
	"$_SDFFE_PN1P_": {typ: CellDffER, dff: DffSpec{ClockPos: true, ResetVal: true, EnablePos: true}},
	"$_SDFFE_PP0N_": {typ: CellDffER, dff: DffSpec{ClockPos: true, ResetPos: true}},
	"$_SDFFE_PP1N_": {typ: CellDffER, dff: DffSpec{ClockPos: true, ResetPos: true, ResetVal: true}},
}

// CellTypeFromString resolves a netlist type string. It returns CellNone and
// a zero spec for unknown names; the loader turns that into a fatal error.
func CellTypeFromString(s string) (CellType, DffSpec) {
	spec, ok := cellTypes[s]
	if !ok {
		return CellNone, DffSpec{}
	}
	return spec.typ, spec.dff
}
