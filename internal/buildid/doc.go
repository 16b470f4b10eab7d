// Package buildid reads, generates and writes firmware build IDs in ELF
// images.
//
// A firmware image carries a small record symbol (g_memfault_build_id by
// default) whose first byte selects the scheme in use:
//
//	1  None           no build ID yet; one is derived and written on request
//	2  GNU SHA-1      the NT_GNU_BUILD_ID note emitted by `ld --build-id`
//	3  Memfault SHA-1 a digest stored in g_memfault_sdk_derived_build_id
//
// The derived digest covers every allocated section in section table order.
// Each section contributes its 32-bit start address; bss sections then
// contribute their size and all others their content. The bytes of the
// symbol receiving the digest are hashed as Placeholder so the digest can be
// stored inside the image it describes.
//
// Two direct modes write a SHA-1 or CRC32 of the image into any correctly
// sized symbol, independent of the record.
//
// Basic usage:
//
//	img, err := elfimage.Open(path, elfimage.WithWrite())
//	if err != nil {
//	    return err
//	}
//	defer img.Close()
//
//	res, err := buildid.NewInspector(img, buildid.DefaultConfig(), logger).CheckOrUpdate()
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Hex())
//
// Writes are single in-place WriteAt calls on the handle the image was parsed
// from. When a derived build ID is added the digest is written before the
// record tag, so an interrupted run leaves the record at None and the next run
// starts over.
package buildid
