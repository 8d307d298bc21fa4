package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func (cfg *Config) dumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump INPUT",
		Short: "Hex dump a byte range of a file.",
		Long: `dump prints the bytes of a file starting at --offset as hexadecimal and
ASCII, for inspecting HDF5 structures by hand.`,
		Args:              cobra.ExactArgs(1),
		DisableAutoGenTag: true,
		RunE: func(_ *cobra.Command, args []string) error {
			offset, err := cfg.getInt("offset")
			if err != nil {
				return err
			}
			length, err := cfg.getInt("length")
			if err != nil {
				return err
			}
			log, err := cfg.logger()
			if err != nil {
				return err
			}

			//nolint:gosec // G304: dumping user-provided files is the purpose of this command
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() {
				if err := f.Close(); err != nil {
					log.WithError(err).Warn("closing input")
				}
			}()
			fi, err := f.Stat()
			if err != nil {
				return err
			}
			size := fi.Size()
			if offset < 0 || int64(offset) >= size {
				return fmt.Errorf("invalid offset: %d (file size: %d)", offset, size)
			}
			if length < 1 {
				return fmt.Errorf("invalid length: %d", length)
			}
			if remaining := size - int64(offset); int64(length) > remaining {
				log.Warnf("requested length %d exceeds available bytes (%d)", length, remaining)
				length = int(remaining)
			}

			buf := make([]byte, length)
			n, err := f.ReadAt(buf, int64(offset))
			if err != nil && n < length {
				log.WithError(err).Warnf("read %d of %d bytes", n, length)
			}
			_, _ = fmt.Fprintf(cfg.stdout, "Dumping %d bytes at offset 0x%x (%d) of %s (size: %d bytes):\n",
				n, offset, offset, args[0], size)
			return HexDump(cfg.stdout, buf[:n], int64(offset))
		},
	}
}

// HexDump writes data as rows of 16 bytes: the file offset, the bytes in
// hexadecimal and their printable ASCII characters.
func HexDump(w io.Writer, data []byte, offset int64) error {
	for i := 0; i < len(data); i += 16 {
		chunk := data[i:min(i+16, len(data))]
		line := fmt.Sprintf("%08x: ", offset+int64(i))
		for j := 0; j < 16; j++ {
			if j < len(chunk) {
				line += fmt.Sprintf("%02x ", chunk[j])
			} else {
				line += "   "
			}
			if j == 7 {
				line += " "
			}
		}
		line += " |"
		for _, b := range chunk {
			if b >= 32 && b <= 126 {
				line += string(rune(b))
			} else {
				line += "."
			}
		}
		if _, err := fmt.Fprintln(w, line+"|"); err != nil {
			return err
		}
	}
	return nil
}
