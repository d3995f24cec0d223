// Package export renders the access point list compiled into the tracker
// firmware.
package export

import (
	"bufio"
	"fmt"
	"io"

	"github.com/banshee-data/catfinder/internal/packet"
)

// HeaderFilename is the name the firmware build expects.
const HeaderFilename = "bssid_list.h"

// WriteHeader writes bssids as a C header declaring bssid_list, one six byte
// row per access point.
func WriteHeader(w io.Writer, bssids []packet.BSSID) error {
	bw := bufio.NewWriter(w)
	fmt.Fprint(bw, "#ifndef BSSID_LIST_H\n#define BSSID_LIST_H\n\n")
	fmt.Fprint(bw, "const char* bssid_list[][6] = {\n")
	for _, b := range bssids {
		fmt.Fprintf(bw, "    {0x%02X,0x%02X,0x%02X,0x%02X,0x%02X,0x%02X},\n", b[0], b[1], b[2], b[3], b[4], b[5])
	}
	fmt.Fprint(bw, "};\n\n#endif // BSSID_LIST_H\n")
	return bw.Flush()
}
