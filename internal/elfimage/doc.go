// Package elfimage provides read access to linked firmware ELF images and the
// single in-place write primitive needed to patch them.
//
// An Image wraps a debug/elf parse of the file together with the handle it was
// opened from. Sections are classified once when the image is opened:
//
//	Unallocated  no SHF_ALLOC flag, never part of the loaded image
//	Text         executable, or allocated and read-only
//	Bss          allocated, writable, SHT_NOBITS (zero-fill, no file content)
//	Data         everything else that is allocated
//
// Symbols are resolved through a name index that is built the first time a
// symbol is looked up. Production images carry tens of thousands of symbols,
// so lookups never scan the table linearly.
//
// # Writing
//
// Images opened with WithWrite keep the file open read-write and expose WriteAt.
// Nothing in this package changes the file length; callers write fixed-size
// byte ranges at offsets computed by SymbolFileOffset.
package elfimage
