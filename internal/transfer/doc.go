// Package transfer applies magnetotelluric impedance tensors to magnetic
// field time series.
//
// The geoelectric field is computed in the frequency domain as
//
//	[Ex]   [Zxx Zxy] [Bx]
//	[Ey] = [Zyx Zyy] [By]
//
// with Z in (mV/km)/nT, B in nT and E in mV/km. The time dependence of the
// Fourier synthesis is exp(+iωt), the usual magnetotelluric convention.
package transfer
