package containers

// Flatten concatenates the chunks into one sequence and returns, for every
// input chunk in order, the partition it occupies in the result.
func Flatten[E any](chunks [][]E) ([]E, []Partition[uint32]) {
	total := 0
	sizes := make([]uint32, len(chunks))
	for i, c := range chunks {
		sizes[i] = uint32(len(c))
		total += len(c)
	}
	flat := make([]E, 0, total)
	for _, c := range chunks {
		flat = append(flat, c...)
	}
	return flat, PartitionSizes(sizes)
}

/**
 * @brief A two dimensional sequence stored linearly: one flat slice plus
 * the partition table describing each row.
 */
type Linear2D[E any] struct {
	data       []E
	partitions []Partition[uint32]
}

func NewLinear2D[E any](chunks [][]E) *Linear2D[E] {
	data, parts := Flatten(chunks)
	return &Linear2D[E]{
		data:       data,
		partitions: parts,
	}
}

// Chunk returns row i without copying.
func (l *Linear2D[E]) Chunk(i int) []E {
	return Slice(l.data, l.partitions[i])
}

// Len is the number of rows.
func (l *Linear2D[E]) Len() int {
	return len(l.partitions)
}

func (l *Linear2D[E]) Data() []E {
	return l.data
}

func (l *Linear2D[E]) Partitions() []Partition[uint32] {
	return l.partitions
}

func (l *Linear2D[E]) Partition(i int) Partition[uint32] {
	return l.partitions[i]
}
