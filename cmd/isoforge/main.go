// isoforge is a command-line tool for inspecting ISO9660 images, including
// Joliet, Rock Ridge, and El Torito extensions. It opens an image and
// prints what it contains; it does not create or modify images.
package main

import (
	"fmt"
	"os"

	"github.com/bgrewell/usage"

	isoforge "github.com/bgrewell/iso-forge"
	"github.com/bgrewell/iso-forge/pkg/filesystem"
	"github.com/bgrewell/iso-forge/pkg/logging"
	"github.com/bgrewell/iso-forge/pkg/option"
)

func displayInfo(img *isoforge.Image, verbose bool) {
	files := img.ListFiles(filesystem.ISO)
	dirs := img.ListDirectories(filesystem.ISO)

	var totalSize int64
	for _, f := range files {
		totalSize += f.Size
	}

	fmt.Println("=== ISO Information ===")
	fmt.Printf("Type: %v\n", img.Type())
	fmt.Printf("Total Files: %d\n", len(files))
	fmt.Printf("Total Directories: %d\n", len(dirs))
	fmt.Printf("Total Size: %d bytes\n", totalSize)

	if sectors, err := img.TotalSectors(); err == nil {
		fmt.Printf("Image Size: %d sectors\n", sectors)
	}

	if img.HasElTorito() {
		fmt.Println("El Torito: present")
	}
	if img.HasIsohybrid() {
		fmt.Println("Isohybrid: present")
	}

	if verbose {
		fmt.Println("\n=== Files ===")
		for _, f := range files {
			fmt.Printf("  %s (%d bytes)\n", f.FullPath, f.Size)
		}
		fmt.Println("\n=== Directories ===")
		for _, d := range dirs {
			fmt.Printf("  %s\n", d.FullPath)
		}
	}
}

func main() {
	u := usage.NewUsage(
		usage.WithApplicationName("isoforge"),
		usage.WithApplicationDescription("isoforge inspects ISO9660 images, including Rock Ridge, Joliet, El Torito, and isohybrid extensions."),
	)

	help := u.AddBooleanOption("h", "help", false, "Show this help message", "optional", nil)
	verbose := u.AddBooleanOption("v", "verbose", false, "Print per-file detail", "", nil)
	path := u.AddArgument(1, "iso-path", "Path to the ISO image to inspect", "")

	if !u.Parse() {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}

	if *help {
		u.PrintUsage()
		os.Exit(0)
	}

	if path == nil || *path == "" {
		u.PrintError(fmt.Errorf("path to an iso file must be provided"))
		os.Exit(1)
	}

	f, err := os.Open(*path)
	if err != nil {
		u.PrintError(err)
		os.Exit(1)
	}
	defer f.Close()

	logger := logging.NewLogger(logging.NewSimpleLogger(os.Stderr, logging.LEVEL_INFO, true))
	img, err := isoforge.Open(f,
		option.WithParseOnOpen(true),
		option.WithRockRidgeEnabled(true),
		option.WithElToritoEnabled(true),
		option.WithLogger(logger),
	)
	if err != nil {
		u.PrintError(err)
		os.Exit(1)
	}
	defer img.Close()

	displayInfo(img, *verbose)
}
