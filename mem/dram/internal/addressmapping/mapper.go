// Package addressmapping splits a physical address into the coordinates of a
// DRAM access.
package addressmapping

import "fmt"

// Location is the coordinate of an access unit in a DRAM.
type Location struct {
	Channel   uint64
	Rank      uint64
	BankGroup uint64
	Bank      uint64
	Row       uint64
	Column    uint64
}

// A Mapper converts an address to a location.
type Mapper interface {
	Map(addr uint64) Location
}

// Field names a part of the address.
type Field int

// A list of all address fields.
const (
	FieldChannel Field = iota
	FieldRank
	FieldBankGroup
	FieldBank
	FieldRow
	FieldColumn
)

// Order lists the fields from the most significant to the least significant
// bits. The bank group is always placed right above the bank.
type Order []Field

// Orders understood by the mapper.
var (
	RoBaRaCoCh = Order{FieldRow, FieldBank, FieldRank, FieldColumn, FieldChannel}
	ChRaBaRoCo = Order{FieldChannel, FieldRank, FieldBank, FieldRow, FieldColumn}
)

// OrderByName returns the order that a mapper name describes.
func OrderByName(name string) (Order, error) {
	switch name {
	case "RoBaRaCoCh":
		return RoBaRaCoCh, nil
	case "ChRaBaRoCo":
		return ChRaBaRoCo, nil
	default:
		return nil, fmt.Errorf("unknown address mapping %q", name)
	}
}

type fieldPos struct {
	pos  uint64
	mask uint64
}

type bitMapper struct {
	offsetBits uint64
	fields     [FieldColumn + 1]fieldPos
}

func (m *bitMapper) Map(addr uint64) Location {
	addr >>= m.offsetBits

	get := func(f Field) uint64 {
		return (addr >> m.fields[f].pos) & m.fields[f].mask
	}

	return Location{
		Channel:   get(FieldChannel),
		Rank:      get(FieldRank),
		BankGroup: get(FieldBankGroup),
		Bank:      get(FieldBank),
		Row:       get(FieldRow),
		Column:    get(FieldColumn),
	}
}

// Builder can build mappers.
type Builder struct {
	order        Order
	busWidth     int
	burstLength  int
	numChannel   int
	numRank      int
	numBankGroup int
	numBank      int
	numRow       int
	numCol       int
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		order:        RoBaRaCoCh,
		busWidth:     64,
		burstLength:  8,
		numChannel:   1,
		numRank:      1,
		numBankGroup: 1,
		numBank:      8,
		numRow:       1 << 15,
		numCol:       1 << 10,
	}
}

// WithOrder sets the order of the fields.
func (b Builder) WithOrder(o Order) Builder {
	b.order = o
	return b
}

// WithBusWidth sets the number of bits transferred per beat.
func (b Builder) WithBusWidth(n int) Builder {
	b.busWidth = n
	return b
}

// WithBurstLength sets the number of beats in one access.
func (b Builder) WithBurstLength(n int) Builder {
	b.burstLength = n
	return b
}

// WithNumChannel sets the number of channels.
func (b Builder) WithNumChannel(n int) Builder {
	b.numChannel = n
	return b
}

// WithNumRank sets the number of ranks per channel.
func (b Builder) WithNumRank(n int) Builder {
	b.numRank = n
	return b
}

// WithNumBankGroup sets the number of bank groups per rank.
func (b Builder) WithNumBankGroup(n int) Builder {
	b.numBankGroup = n
	return b
}

// WithNumBank sets the number of banks per bank group.
func (b Builder) WithNumBank(n int) Builder {
	b.numBank = n
	return b
}

// WithNumRow sets the number of rows per bank.
func (b Builder) WithNumRow(n int) Builder {
	b.numRow = n
	return b
}

// WithNumCol sets the number of columns per row.
func (b Builder) WithNumCol(n int) Builder {
	b.numCol = n
	return b
}

// Build creates the mapper. All the sizes must be powers of two.
func (b Builder) Build() Mapper {
	m := &bitMapper{
		offsetBits: mustLog2(uint64(b.busWidth / 8 * b.burstLength)),
	}

	// A column address addresses one beat; an access covers a burst.
	colBits := mustLog2(uint64(b.numCol)) - mustLog2(uint64(b.burstLength))
	if b.numCol < b.burstLength {
		colBits = 0
	}

	bits := map[Field]uint64{
		FieldChannel:   mustLog2(uint64(b.numChannel)),
		FieldRank:      mustLog2(uint64(b.numRank)),
		FieldBankGroup: mustLog2(uint64(b.numBankGroup)),
		FieldBank:      mustLog2(uint64(b.numBank)),
		FieldRow:       mustLog2(uint64(b.numRow)),
		FieldColumn:    colBits,
	}

	pos := uint64(0)
	for i := len(b.order) - 1; i >= 0; i-- {
		f := b.order[i]
		m.fields[f] = fieldPos{pos: pos, mask: 1<<bits[f] - 1}
		pos += bits[f]

		if f == FieldBank {
			m.fields[FieldBankGroup] = fieldPos{
				pos:  pos,
				mask: 1<<bits[FieldBankGroup] - 1,
			}
			pos += bits[FieldBankGroup]
		}
	}

	return m
}

func mustLog2(n uint64) uint64 {
	bits, ok := log2(n)
	if !ok {
		panic(fmt.Sprintf("%d is not a power of two", n))
	}

	return bits
}

// log2 returns the log2 of a number. It also returns false if it is not a log2
// number.
func log2(n uint64) (uint64, bool) {
	oneCount := 0
	onePos := uint64(0)

	for i := uint64(0); i < 64; i++ {
		if n&(1<<i) > 0 {
			onePos = i
			oneCount++
		}
	}

	return onePos, oneCount == 1
}
