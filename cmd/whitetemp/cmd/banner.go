package cmd

import (
	"fmt"
	"io"
)

const banner = `
          _     _ _       _                        
__      _| |__ (_) |_ ___| |_ ___ _ __ ___  _ __  
\ \ /\ / / '_ \| | __/ _ \ __/ _ \ '_ ` + "`" + ` _ \| '_ \ 
 \ V  V /| | | | | ||  __/ ||  __/ | | | | | |_) |
  \_/\_/ |_| |_|_|\__\___|\__\___|_| |_| |_| .__/ 
                                           |_|    
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m", banner)
	fmt.Fprintf(w, "\x1b[32m  Temporary Whitelist - Version %s\x1b[0m\n\n", Version)
}
