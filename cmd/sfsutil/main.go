// Command sfsutil is a thin external collaborator around the sfs package:
// it only calls the public create/remove/stat/read/write/format/mount/
// unmount/debug/fsck operations, never reaching into mount state directly.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/go-sfs/sfs/block"
	"github.com/go-sfs/sfs/disks"
	"github.com/go-sfs/sfs/layout"
	"github.com/go-sfs/sfs/sfs"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Name:  "sfsutil",
		Usage: "Create and inspect SFS disk images",
		Commands: []*cli.Command{
			{
				Name:      "format",
				Usage:     "Create or wipe an image",
				ArgsUsage: "IMAGE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "preset", Usage: "named size preset (tiny, small, medium, large)"},
					&cli.UintFlag{Name: "blocks", Usage: "explicit block count, overrides --preset"},
				},
				Action: formatImage,
			},
			{
				Name:      "debug",
				Usage:     "Print superblock and inode information",
				ArgsUsage: "IMAGE",
				Action:    debugImage,
			},
			{
				Name:      "fsck",
				Usage:     "Recompute and compare the free-block bitmap",
				ArgsUsage: "IMAGE",
				Action:    fsckImage,
			},
			{
				Name:      "create",
				Usage:     "Create an empty inode and print its inumber",
				ArgsUsage: "IMAGE",
				Action:    createInode,
			},
			{
				Name:      "rm",
				Usage:     "Remove an inode",
				ArgsUsage: "IMAGE INUMBER",
				Action:    removeInode,
			},
			{
				Name:      "cat",
				Usage:     "Print an inode's contents to stdout",
				ArgsUsage: "IMAGE INUMBER",
				Action:    catInode,
			},
			{
				Name:      "write",
				Usage:     "Write a local file's contents into an inode at offset 0",
				ArgsUsage: "IMAGE INUMBER LOCAL-FILE",
				Action:    writeInode,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("sfsutil: %s", err)
	}
}

func formatImage(ctx *cli.Context) error {
	path := ctx.Args().First()
	if path == "" {
		return fmt.Errorf("usage: sfsutil format [--preset NAME | --blocks N] IMAGE")
	}

	blocks := uint32(ctx.Uint("blocks"))
	if blocks == 0 {
		slug := ctx.String("preset")
		if slug == "" {
			slug = "small"
		}
		preset, err := disks.Get(slug)
		if err != nil {
			return err
		}
		blocks = preset.Blocks
	}

	dev, err := block.OpenFileDevice(path, blocks, true)
	if err != nil {
		return err
	}
	defer dev.Close()

	if err := sfs.Format(dev); err != nil {
		return err
	}
	fmt.Printf("formatted %s: %d blocks\n", path, blocks)
	return nil
}

func openExisting(path string) (*block.FileDevice, error) {
	// The image's block count isn't known until we've read the superblock,
	// so peek at the file's size to derive it.
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	totalBlocks := uint32(info.Size() / layout.BlockSize)
	return block.OpenFileDevice(path, totalBlocks, false)
}

func debugImage(ctx *cli.Context) error {
	path := ctx.Args().First()
	if path == "" {
		return fmt.Errorf("usage: sfsutil debug IMAGE")
	}

	dev, err := openExisting(path)
	if err != nil {
		return err
	}
	defer dev.Close()

	return sfs.Debug(dev, os.Stdout)
}

func withMountedImage(path string, fn func(fs *sfs.FileSystem) error) error {
	dev, err := openExisting(path)
	if err != nil {
		return err
	}
	defer dev.Close()

	fs, err := sfs.Mount(dev)
	if err != nil {
		return err
	}
	defer fs.Unmount()

	return fn(fs)
}

func fsckImage(ctx *cli.Context) error {
	path := ctx.Args().First()
	if path == "" {
		return fmt.Errorf("usage: sfsutil fsck IMAGE")
	}

	return withMountedImage(path, func(fs *sfs.FileSystem) error {
		if err := fs.Fsck(); err != nil {
			return fmt.Errorf("inconsistent bitmap: %w", err)
		}
		fmt.Println("bitmap is consistent")
		return nil
	})
}

func createInode(ctx *cli.Context) error {
	path := ctx.Args().First()
	if path == "" {
		return fmt.Errorf("usage: sfsutil create IMAGE")
	}

	return withMountedImage(path, func(fs *sfs.FileSystem) error {
		inumber := fs.Create()
		if inumber < 0 {
			return fmt.Errorf("no free inodes")
		}
		fmt.Println(inumber)
		return nil
	})
}

func removeInode(ctx *cli.Context) error {
	path := ctx.Args().Get(0)
	inumberArg := ctx.Args().Get(1)
	if path == "" || inumberArg == "" {
		return fmt.Errorf("usage: sfsutil rm IMAGE INUMBER")
	}
	inumber, err := strconv.ParseUint(inumberArg, 10, 32)
	if err != nil {
		return err
	}

	return withMountedImage(path, func(fs *sfs.FileSystem) error {
		if !fs.Remove(uint32(inumber)) {
			return fmt.Errorf("failed to remove inode %d", inumber)
		}
		return nil
	})
}

func catInode(ctx *cli.Context) error {
	path := ctx.Args().Get(0)
	inumberArg := ctx.Args().Get(1)
	if path == "" || inumberArg == "" {
		return fmt.Errorf("usage: sfsutil cat IMAGE INUMBER")
	}
	inumber, err := strconv.ParseUint(inumberArg, 10, 32)
	if err != nil {
		return err
	}

	return withMountedImage(path, func(fs *sfs.FileSystem) error {
		size := fs.Stat(uint32(inumber))
		if size < 0 {
			return fmt.Errorf("inode %d is not allocated", inumber)
		}

		buf := make([]byte, size)
		n := fs.Read(uint32(inumber), buf, 0)
		if n < 0 {
			return fmt.Errorf("failed to read inode %d", inumber)
		}
		_, err := os.Stdout.Write(buf[:n])
		return err
	})
}

func writeInode(ctx *cli.Context) error {
	path := ctx.Args().Get(0)
	inumberArg := ctx.Args().Get(1)
	localPath := ctx.Args().Get(2)
	if path == "" || inumberArg == "" || localPath == "" {
		return fmt.Errorf("usage: sfsutil write IMAGE INUMBER LOCAL-FILE")
	}
	inumber, err := strconv.ParseUint(inumberArg, 10, 32)
	if err != nil {
		return err
	}

	localFile, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer localFile.Close()

	data, err := io.ReadAll(localFile)
	if err != nil {
		return err
	}

	return withMountedImage(path, func(fs *sfs.FileSystem) error {
		n := fs.Write(uint32(inumber), data, 0)
		if n < 0 {
			return fmt.Errorf("failed to write inode %d", inumber)
		}
		if n < int64(len(data)) {
			fmt.Fprintf(os.Stderr, "warning: short write, %d of %d bytes written\n", n, len(data))
		}
		return nil
	})
}
