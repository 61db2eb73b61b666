package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Embedding matrices are persisted in NumPy .npy version 1.0 format
// (little-endian float32, C order) so the cache layout stays readable by
// the usual numeric tooling. Only the subset of the format this codec
// writes is accepted back.

var npyMagic = []byte("\x93NUMPY")

// encodeNpy serializes a rows×cols float32 matrix. Rows must have uniform
// length; a 0×0 matrix is valid and round-trips.
func encodeNpy(matrix [][]float32) ([]byte, error) {
	rows := len(matrix)
	cols := 0
	if rows > 0 {
		cols = len(matrix[0])
	}
	for i, row := range matrix {
		if len(row) != cols {
			return nil, fmt.Errorf("ragged embedding matrix: row %d has %d values, want %d", i, len(row), cols)
		}
	}

	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", rows, cols)
	// Pad so that the data section starts on a 64-byte boundary.
	headerLen := len(npyMagic) + 2 + 2 + len(header) + 1
	pad := (64 - headerLen%64) % 64
	header += strings.Repeat(" ", pad) + "\n"

	var buf bytes.Buffer
	buf.Write(npyMagic)
	buf.WriteByte(1) // major version
	buf.WriteByte(0) // minor version
	var hlen [2]byte
	binary.LittleEndian.PutUint16(hlen[:], uint16(len(header)))
	buf.Write(hlen[:])
	buf.WriteString(header)

	var scratch [4]byte
	for _, row := range matrix {
		for _, v := range row {
			binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(v))
			buf.Write(scratch[:])
		}
	}
	return buf.Bytes(), nil
}

// decodeNpy parses a matrix written by encodeNpy.
func decodeNpy(data []byte) ([][]float32, error) {
	if len(data) < len(npyMagic)+4 || !bytes.Equal(data[:len(npyMagic)], npyMagic) {
		return nil, fmt.Errorf("not an npy file")
	}
	if data[6] != 1 {
		return nil, fmt.Errorf("unsupported npy version %d.%d", data[6], data[7])
	}
	headerLen := int(binary.LittleEndian.Uint16(data[8:10]))
	if len(data) < 10+headerLen {
		return nil, fmt.Errorf("truncated npy header")
	}
	header := string(data[10 : 10+headerLen])

	if !strings.Contains(header, "'<f4'") {
		return nil, fmt.Errorf("unsupported npy dtype in header %q", header)
	}
	if strings.Contains(header, "'fortran_order': True") {
		return nil, fmt.Errorf("fortran-order npy not supported")
	}
	rows, cols, err := parseShape(header)
	if err != nil {
		return nil, err
	}

	body := data[10+headerLen:]
	if len(body) < rows*cols*4 {
		return nil, fmt.Errorf("npy data too short: have %d bytes, want %d", len(body), rows*cols*4)
	}

	matrix := make([][]float32, rows)
	off := 0
	for r := 0; r < rows; r++ {
		row := make([]float32, cols)
		for c := 0; c < cols; c++ {
			row[c] = math.Float32frombits(binary.LittleEndian.Uint32(body[off : off+4]))
			off += 4
		}
		matrix[r] = row
	}
	return matrix, nil
}

func parseShape(header string) (rows, cols int, err error) {
	i := strings.Index(header, "'shape': (")
	if i < 0 {
		return 0, 0, fmt.Errorf("npy header missing shape: %q", header)
	}
	rest := header[i+len("'shape': ("):]
	j := strings.Index(rest, ")")
	if j < 0 {
		return 0, 0, fmt.Errorf("npy header malformed shape: %q", header)
	}
	parts := strings.Split(rest[:j], ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("npy shape is not 2-D: %q", rest[:j])
	}
	rows, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("npy shape rows: %w", err)
	}
	cols, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("npy shape cols: %w", err)
	}
	return rows, cols, nil
}
