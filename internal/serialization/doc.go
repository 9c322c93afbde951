// Package serialization implements the .born checkpoint container.
//
//	Format Structure (version 2):
//	  0x00 [4 bytes: Magic "BORN"]
//	  0x04 [4 bytes: Version (uint32 LE)]
//	  0x08 [4 bytes: Flags (uint32 LE)]
//	  0x0C [4 bytes: reserved]
//	  0x10 [8 bytes: Header Size (uint64 LE)]
//	  0x18 [8 bytes: Data Size (uint64 LE)]
//	  0x20 [32 bytes: SHA-256 of the tensor data]
//	  0x40 [Header: JSON metadata]
//	  [Tensor data: little-endian, 64-byte aligned]
//
// Tensors are stored as float32 or, when FlagHalfPrecision is set, as
// 16-bit IEEE 754 binary16 or bfloat16 values. Each tensor's dtype is
// recorded in the JSON header.
//
// Example usage:
//
//	err := serialization.WriteFile("model.born", stateDict, header, tensor.Float32)
//
//	file, err := serialization.ReadFile("model.born")
//	stateDict := file.StateDict
package serialization
